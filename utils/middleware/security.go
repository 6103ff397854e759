package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// DefaultOrigins are always allowed in addition to ALLOWED_ORIGINS.
var DefaultOrigins = []string{"http://localhost:3000", "http://localhost:3030"}

// SecurityConfig holds security middleware configuration
type SecurityConfig struct {
	AllowedOrigins    string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// APIKeyAuth runs before the IP limiter so keyed requests can skip it
	APIKeyAuth fiber.Handler
	// DisableAccessLog silences the request logger (tests)
	DisableAccessLog bool
}

// SetupSecurity applies all security middleware
func SetupSecurity(app *fiber.App, config SecurityConfig) {
	// Request ID middleware - add unique ID to each request
	app.Use(requestid.New())

	if !config.DisableAccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip}\n",
			TimeFormat: "2006-01-02 15:04:05",
			TimeZone:   "Local",
		}))
	}

	// Recover middleware - recover from panics
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Helmet middleware - secure HTTP headers
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000,
		ReferrerPolicy:     "no-referrer",
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	origins := AllowedOrigins(config.AllowedOrigins)
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	corsConfig := cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Admin-Secret",
		ExposeHeaders:    "X-RateLimit-Limit,X-RateLimit-Remaining,Retry-After",
		AllowCredentials: true,
		MaxAge:           86400,
	}
	if wildcard {
		// fiber refuses credentials together with a wildcard origin
		corsConfig.AllowOrigins = "*"
		corsConfig.AllowCredentials = false
	}
	app.Use(cors.New(corsConfig))

	if config.APIKeyAuth != nil {
		app.Use(config.APIKeyAuth)
	}

	if config.RateLimitRequests > 0 {
		app.Use(newIPLimiter(config.RateLimitRequests, config.RateLimitWindow,
			"Too many requests from this IP, please try again later."))
	}
}

// SearchLimiter is the stricter per-IP budget for the search endpoints.
func SearchLimiter(max int, window time.Duration) fiber.Handler {
	return newIPLimiter(max, window, "Too many search requests, please slow down.")
}

func newIPLimiter(max int, window time.Duration, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Next:       HasAPIKey,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": message,
				},
			})
		},
	})
}

// AllowedOrigins merges the default development origins with a comma separated list.
func AllowedOrigins(configured string) []string {
	seen := map[string]bool{}
	origins := []string{}
	for _, o := range append(append([]string{}, DefaultOrigins...), strings.Split(configured, ",")...) {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		origins = append(origins, o)
	}
	return origins
}
