package admin

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/middleware"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
)

// SessionRequest exchanges the admin secret for a session token.
type SessionRequest struct {
	Secret string `json:"secret"`
}

// SessionResponse is a freshly issued admin session.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateSession handles POST /api/admin/session. The secret may be sent in the
// body or the x-admin-secret header. Failed attempts count towards the
// caller's lockout.
func (h *AdminHandler) CreateSession(c *fiber.Ctx) error {
	if !h.guard.Configured() {
		logger.Error().Msg("ADMIN_SECRET is not set; refusing session request")
		return response.InternalServerError(c, "Admin access is not configured")
	}
	if h.jwt == nil || !h.jwt.Enabled() {
		return response.ServiceUnavailable(c, "Session tokens are not enabled")
	}

	var req SessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}
	secret := req.Secret
	if secret == "" {
		secret = c.Get(middleware.AdminSecretHeader)
	}
	if secret == "" {
		return response.Unauthorized(c, "Admin credentials required")
	}

	ip := c.IP()
	if !h.guard.CheckSecret(secret) {
		if h.bruteForce != nil {
			if err := h.bruteForce.RecordFailedAttempt(c, ip); err != nil {
				logger.Warn().Err(err).Str("ip", ip).Msg("failed to record admin session attempt")
			}
		}
		return response.Forbidden(c, "Invalid admin credentials")
	}
	if h.bruteForce != nil {
		_ = h.bruteForce.RecordSuccessfulAttempt(c, ip)
	}

	session, err := h.jwt.GenerateAdminToken("admin")
	if err != nil {
		logger.Error().Err(err).Msg("failed to issue admin session")
		return response.InternalServerError(c, "Failed to issue session")
	}

	logger.Info().Str("ip", ip).Str("jti", session.ID).Msg("admin session issued")
	return response.Created(c, SessionResponse{Token: session.Token, ExpiresAt: session.ExpiresAt})
}

// RevokeSession handles DELETE /api/admin/session for the token presented in
// the Authorization header.
func (h *AdminHandler) RevokeSession(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.BadRequest(c, "No session token presented")
	}
	if h.blacklist == nil {
		return response.ServiceUnavailable(c, "Session revocation is not available")
	}

	expiresAt := time.Now().Add(time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := h.blacklist.RevokeToken(c.Context(), claims.ID, expiresAt); err != nil {
		logger.Error().Err(err).Msg("failed to revoke admin session")
		return response.InternalServerError(c, "Failed to revoke session")
	}

	return response.SuccessWithMessage(c, "Session revoked", nil)
}
