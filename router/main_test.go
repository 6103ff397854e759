package router

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/api"
	"github.com/sahilchouksey/college-explorer-api/config"
	"github.com/sahilchouksey/college-explorer-api/handlers/handlertest"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/services/apikey"
	"github.com/sahilchouksey/college-explorer-api/utils/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminSecret = "s3cret"

func newApp(t *testing.T) (*fiber.App, *handlertest.Env) {
	t.Helper()
	env := handlertest.NewEnv(t)
	server := api.NewAPIServer(":0")
	app := server.GetEngine()
	SetupRoutes(app, Dependencies{
		Env: &config.EnviornmentVariable{
			ADMIN_SECRET:               adminSecret,
			JWT_SECRET:                 "jwt",
			JWT_ISSUER:                 "test",
			RESPONSE_CACHE_TTL_SECONDS: 300,
		},
		Provider:         env.Provider,
		Store:            env.Store,
		DisableAccessLog: true,
	})
	return app, env
}

func TestMemoizedListsArePurgedByAdminWrites(t *testing.T) {
	app, _ := newApp(t)

	resp, raw := handlertest.Do(t, app, "GET", "/api/colleges?state=Goa", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	resp, _ = handlertest.Do(t, app, "GET", "/api/colleges?state=Goa", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	resp, raw = handlertest.Do(t, app, "POST", "/api/admin/colleges",
		map[string]string{"name": "Goa Institute of Management", "state": "Goa"},
		map[string]string{middleware.AdminSecretHeader: adminSecret})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(raw))

	resp, raw = handlertest.Do(t, app, "GET", "/api/colleges?state=Goa", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	var colleges []model.College
	envelope := handlertest.Decode(t, raw, &colleges)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 2, envelope.Pagination.TotalCount)
	assert.Len(t, colleges, 2)
}

func TestAPIKeyHeadersOnPublicRoutes(t *testing.T) {
	app, env := newApp(t)
	key, err := apikey.NewService(env.Provider).Generate(t.Context(), model.TierFree)
	require.NoError(t, err)

	resp, _ := handlertest.Do(t, app, "GET", "/api/filters", nil, map[string]string{middleware.APIKeyHeader: key.Key})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "500", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "499", resp.Header.Get("X-RateLimit-Remaining"))

	resp, _ = handlertest.Do(t, app, "GET", "/api/filters", nil, map[string]string{middleware.APIKeyHeader: "cei_unknown"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	app, _ := newApp(t)

	resp, raw := handlertest.Do(t, app, "GET", "/api/nowhere", nil, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	envelope := handlertest.Decode(t, raw, nil)
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}

func TestAdminWithoutDatabaseOrBackup(t *testing.T) {
	app, _ := newApp(t)
	headers := map[string]string{middleware.AdminSecretHeader: adminSecret}

	resp, _ := handlertest.Do(t, app, "GET", "/api/admin/audit", nil, headers)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = handlertest.Do(t, app, "GET", "/api/reviews/bhu", nil, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = handlertest.Do(t, app, "GET", "/api/admin/cache/status", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
