package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/services/apikey"
	"github.com/sahilchouksey/college-explorer-api/utils/auth"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) (*cache.ClientProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	provider := cache.NewClientProvider("redis://" + mr.Addr())
	t.Cleanup(func() { provider.Close() })
	return provider, mr
}

func ok(c *fiber.Ctx) error { return c.SendString("ok") }

func TestAdminAuthStatuses(t *testing.T) {
	provider, _ := newProvider(t)
	jwtManager := auth.NewJWTManager(auth.JWTConfig{Secret: "jwt", Issuer: "test"})
	blacklist := auth.NewBlacklistService(cache.NewRedisCache(provider))

	guarded := func(guard *AdminAuth) *fiber.App {
		app := fiber.New()
		app.Get("/admin", guard.Required(), ok)
		return app
	}

	t.Run("unconfigured", func(t *testing.T) {
		app := guarded(NewAdminAuth("", jwtManager, blacklist))
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set(AdminSecretHeader, "anything")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})

	app := guarded(NewAdminAuth("hunter2", jwtManager, blacklist))

	t.Run("missing", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/admin", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set(AdminSecretHeader, "nope")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("right secret", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set(AdminSecretHeader, "hunter2")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("session token", func(t *testing.T) {
		session, err := jwtManager.GenerateAdminToken("admin")
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+session.Token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		require.NoError(t, blacklist.RevokeToken(context.Background(), session.ID, session.ExpiresAt))
		req = httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+session.Token)
		resp, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

func keyedApp(keys *apikey.Service) *fiber.App {
	app := fiber.New()
	app.Use(NewAPIKeyMiddleware(keys).Authenticate())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"keyed": HasAPIKey(c)})
	})
	return app
}

func TestAPIKeyAuthentication(t *testing.T) {
	provider, mr := newProvider(t)
	keys := apikey.NewService(provider)
	app := keyedApp(keys)
	ctx := context.Background()

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-RateLimit-Limit"))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(APIKeyHeader, "cei_unknown")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	key, err := keys.Generate(ctx, model.TierFree)
	require.NoError(t, err)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(APIKeyHeader, key.Key)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "500", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "499", resp.Header.Get("X-RateLimit-Remaining"))
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"keyed":true}`, string(body))

	// exhaust the window
	mr.Set("usage:"+key.Key, "500")
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(APIKeyHeader, key.Key)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	var limited RateLimitedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&limited))
	assert.Equal(t, 500, limited.Limit)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", limited.Error.Code)

	require.NoError(t, keys.Deactivate(ctx, key.Key))
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(APIKeyHeader, key.Key)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAPIKeyContinuesWhenRedisIsDown(t *testing.T) {
	provider, mr := newProvider(t)
	app := keyedApp(apikey.NewService(provider))
	mr.Close()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(APIKeyHeader, "cei_whatever")
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"keyed":false}`, string(body))
}

func TestUncountedKeyStaysUnderIPLimiter(t *testing.T) {
	provider, mr := newProvider(t)
	keys := apikey.NewService(provider)
	key, err := keys.Generate(context.Background(), model.TierFree)
	require.NoError(t, err)
	// a hash under the counter key makes INCR fail with WRONGTYPE
	mr.HSet("usage:"+key.Key, "broken", "1")

	app := fiber.New()
	app.Use(NewAPIKeyMiddleware(keys).Authenticate())
	app.Use(newIPLimiter(1, time.Minute, "slow down"))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"keyed": HasAPIKey(c)})
	})

	send := func() *http.Response {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(APIKeyHeader, key.Key)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := send()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-RateLimit-Limit"))
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"keyed":false}`, string(body))

	assert.Equal(t, fiber.StatusTooManyRequests, send().StatusCode)
}

func TestAuditEntryOutlivesRequest(t *testing.T) {
	var entries []model.AdminAuditLog
	app := fiber.New()
	app.Delete("/colleges/:id", func(c *fiber.Ctx) error {
		c.Status(fiber.StatusOK)
		entries = append(entries, newAuditEntry(c, "college_delete", "colleges"))
		return nil
	})

	for _, tc := range []struct{ id, agent string }{
		{"iit-kanpur", "cachectl/1.0"},
		{"goa-uni-0000", "Mozilla/5.0 (X11; Linux x86_64)"},
	} {
		req := httptest.NewRequest("DELETE", "/colleges/"+tc.id, nil)
		req.Header.Set("User-Agent", tc.agent)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	require.Len(t, entries, 2)
	assert.Equal(t, "iit-kanpur", entries[0].ResourceID)
	assert.Equal(t, "cachectl/1.0", entries[0].UserAgent)
	assert.Equal(t, "DELETE /colleges/iit-kanpur", entries[0].Description)
	assert.Equal(t, "goa-uni-0000", entries[1].ResourceID)
	assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64)", entries[1].UserAgent)
	assert.Equal(t, fiber.StatusOK, entries[1].StatusCode)
}

func TestBruteForceLockout(t *testing.T) {
	provider, mr := newProvider(t)
	bf := NewBruteForceProtection(cache.NewRedisCache(provider))

	app := fiber.New()
	app.Post("/session", bf.CheckAndRecordAttempt(), func(c *fiber.Ctx) error {
		if c.Get("x-pass") == "yes" {
			_ = bf.RecordSuccessfulAttempt(c, c.IP())
			return c.SendStatus(fiber.StatusOK)
		}
		_ = bf.RecordFailedAttempt(c, c.IP())
		return c.SendStatus(fiber.StatusForbidden)
	})

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/session", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	}

	req := httptest.NewRequest("POST", "/session", nil)
	req.Header.Set("x-pass", "yes")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))

	mr.FastForward(3 * time.Minute)
	req = httptest.NewRequest("POST", "/session", nil)
	req.Header.Set("x-pass", "yes")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, mr.Keys())
}

func TestSearchLimiterSkipsKeyedRequests(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if c.Get(APIKeyHeader) != "" {
			c.Locals("api_key", apikey.Key{Key: c.Get(APIKeyHeader)})
		}
		return c.Next()
	})
	app.Get("/search", SearchLimiter(2, time.Minute), ok)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/search", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/search", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	req := httptest.NewRequest("GET", "/search", nil)
	req.Header.Set(APIKeyHeader, "cei_x")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAllowedOrigins(t *testing.T) {
	assert.Equal(t,
		[]string{"http://localhost:3000", "http://localhost:3030", "https://cei.example"},
		AllowedOrigins(" https://cei.example,http://localhost:3000,"))
}
