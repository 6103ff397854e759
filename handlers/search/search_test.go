package search

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/handlers/handlertest"
	"github.com/sahilchouksey/college-explorer-api/services/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	env := handlertest.NewEnv(t)
	h := NewSearchHandler(env.Catalog)
	app := fiber.New()
	app.Get("/api/search", h.Search)
	app.Get("/api/suggest", h.Suggest)
	return app
}

func TestSearch(t *testing.T) {
	app := newApp(t)

	resp, _ := handlertest.Do(t, app, "GET", "/api/search", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, raw := handlertest.Do(t, app, "GET", "/api/search?q=kanpur", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var results catalog.SearchResults
	handlertest.Decode(t, raw, &results)
	require.NotEmpty(t, results.Colleges)
	assert.Equal(t, "iit-kanpur", results.Colleges[0].ID)
}

func TestSuggest(t *testing.T) {
	app := newApp(t)

	resp, raw := handlertest.Do(t, app, "GET", "/api/suggest?q=bhu&type=college", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var suggestions []catalog.Suggestion
	handlertest.Decode(t, raw, &suggestions)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "bhu", suggestions[0].ID)

	resp, raw = handlertest.Do(t, app, "GET", "/api/suggest?q=cuet&type=exam", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	handlertest.Decode(t, raw, &suggestions)
	require.Len(t, suggestions, 1)
	assert.Equal(t, catalog.KindExam, suggestions[0].Type)

	resp, _ = handlertest.Do(t, app, "GET", "/api/suggest?q=x&type=city", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, raw = handlertest.Do(t, app, "GET", "/api/suggest", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"data":[]`)
}
