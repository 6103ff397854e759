package middleware

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/services/apikey"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
)

// APIKeyHeader names the optional client key.
const APIKeyHeader = "X-API-Key"

// RateLimitedResponse is the 429 body for an exhausted key.
type RateLimitedResponse struct {
	Success    bool                  `json:"success"`
	Error      *response.ErrorDetail `json:"error"`
	Limit      int                   `json:"limit"`
	RetryAfter int                   `json:"retryAfter"`
}

// APIKeyMiddleware handles API key authentication and rate limiting
type APIKeyMiddleware struct {
	keys *apikey.Service
}

// NewAPIKeyMiddleware creates a new API key middleware
func NewAPIKeyMiddleware(keys *apikey.Service) *APIKeyMiddleware {
	return &APIKeyMiddleware{keys: keys}
}

// Authenticate validates an X-API-Key header when present and counts the
// request against the key's tier budget. Requests without a key continue
// anonymously and are left to the IP limiter. Redis failures never block a
// request.
func (m *APIKeyMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(APIKeyHeader)
		if key == "" {
			return c.Next()
		}

		info, err := m.keys.Lookup(c.Context(), key)
		switch {
		case errors.Is(err, apikey.ErrInvalidKey):
			return response.Unauthorized(c, "Invalid API key")
		case errors.Is(err, apikey.ErrInactiveKey):
			return response.Forbidden(c, "API key is inactive")
		case err != nil:
			logger.Error().Err(err).Msg("API key lookup failed; continuing anonymously")
			return c.Next()
		}

		usage, err := m.keys.Consume(c.Context(), key, info.Tier)
		if err != nil {
			// an uncounted request stays under the IP limiter
			logger.Error().Err(err).Msg("API key usage counter failed; continuing anonymously")
			return c.Next()
		}
		c.Locals("api_key", apikey.Key{Key: key, APIKeyInfo: info})
		if usage.Unlimited {
			return c.Next()
		}

		if usage.Exceeded {
			retryAfter := int(math.Ceil(usage.RetryAfter.Seconds()))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(RateLimitedResponse{
				Success: false,
				Error: &response.ErrorDetail{
					Code:    "RATE_LIMIT_EXCEEDED",
					Message: "Rate limit exceeded for this API key",
				},
				Limit:      usage.Limit,
				RetryAfter: retryAfter,
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(usage.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(usage.Remaining))

		return c.Next()
	}
}

// GetAPIKey retrieves the API key from context
func GetAPIKey(c *fiber.Ctx) (apikey.Key, bool) {
	key, ok := c.Locals("api_key").(apikey.Key)
	return key, ok
}

// HasAPIKey reports whether the request carried a valid key whose usage was
// counted. The IP limiters skip such requests.
func HasAPIKey(c *fiber.Ctx) bool {
	_, ok := GetAPIKey(c)
	return ok
}
