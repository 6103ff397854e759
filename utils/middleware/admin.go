package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/auth"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminSecretHeader carries the shared admin secret.
const AdminSecretHeader = "x-admin-secret"

// AdminAuth guards the /api/admin routes. A request is admitted with either
// the shared secret header or a Bearer session token issued by /api/admin/session.
type AdminAuth struct {
	secret           string
	jwtManager       *auth.JWTManager
	blacklistService *auth.BlacklistService
}

// NewAdminAuth creates the admin guard. jwtManager and blacklist may be nil.
func NewAdminAuth(secret string, jwtManager *auth.JWTManager, blacklist *auth.BlacklistService) *AdminAuth {
	return &AdminAuth{
		secret:           secret,
		jwtManager:       jwtManager,
		blacklistService: blacklist,
	}
}

// Configured reports whether ADMIN_SECRET is set.
func (m *AdminAuth) Configured() bool {
	return m.secret != ""
}

// CheckSecret compares candidate with the configured secret in constant time.
func (m *AdminAuth) CheckSecret(candidate string) bool {
	if m.secret == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(m.secret)) == 1
}

// Required rejects requests without valid admin credentials:
// 500 when no secret is configured, 401 when none are presented, 403 when they are wrong.
func (m *AdminAuth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.Configured() {
			logger.Error().Msg("ADMIN_SECRET is not set; refusing admin request")
			return response.InternalServerError(c, "Admin access is not configured")
		}

		if secret := c.Get(AdminSecretHeader); secret != "" {
			if !m.CheckSecret(secret) {
				return response.Forbidden(c, "Invalid admin credentials")
			}
			c.Locals("admin_subject", "secret")
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Admin credentials required")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			return response.Unauthorized(c, "Invalid authorization format")
		}

		if !m.jwtManager.Enabled() {
			return response.Forbidden(c, "Session tokens are not enabled")
		}

		claims, err := m.jwtManager.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				return response.Forbidden(c, "Token has expired")
			}
			return response.Forbidden(c, "Invalid token")
		}

		if m.blacklistService != nil {
			revoked, err := m.blacklistService.IsTokenRevoked(c.Context(), claims.ID)
			if err != nil {
				logger.Error().Err(err).Msg("failed to check admin token status")
				return response.InternalServerError(c, "Failed to check token status")
			}
			if revoked {
				return response.Forbidden(c, "Token has been revoked")
			}
		}

		c.Locals("admin_subject", claims.Subject)
		c.Locals("claims", claims)
		c.Locals("token_jti", claims.ID)

		return c.Next()
	}
}

// GetClaims returns the session claims of a token-authenticated admin request.
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals("claims").(*auth.Claims)
	return claims, ok
}

// AdminAuditLog creates an audit log entry for admin actions. It is a no-op
// when db is nil.
func AdminAuditLog(db *gorm.DB, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db == nil {
			return c.Next()
		}

		// Execute the actual handler
		err := c.Next()

		entry := newAuditEntry(c, action, resource)

		go func() {
			if err := db.Create(&entry).Error; err != nil {
				logger.Warn().Err(err).Str("action", action).Msg("failed to write admin audit log")
			}
		}()

		return err
	}
}

// newAuditEntry copies the request details into an audit row. fiber recycles
// the request buffers once the handler returns, so nothing here may alias them.
func newAuditEntry(c *fiber.Ctx, action, resource string) model.AdminAuditLog {
	entry := model.AdminAuditLog{
		Action:      action,
		Resource:    resource,
		ResourceID:  utils.CopyString(c.Params("id")),
		StatusCode:  c.Response().StatusCode(),
		IPAddress:   utils.CopyString(c.IP()),
		UserAgent:   utils.CopyString(c.Get(fiber.HeaderUserAgent)),
		Description: c.Method() + " " + c.Path(),
	}
	if subject, ok := c.Locals("admin_subject").(string); ok && subject != "" {
		entry.Description += " by " + subject
	}
	if body := c.Body(); len(body) > 0 && json.Valid(body) {
		entry.Payload = datatypes.JSON(append([]byte(nil), body...))
	}
	return entry
}
