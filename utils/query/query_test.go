package query

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryHelpers(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"page":   Int(c, "page", 1),
			"limit":  Int(c, "limit", 20),
			"q":      Trimmed(c, "q"),
			"params": Params(c, "state", "q", "tier"),
		})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/?page=3&limit=-4&q=%20iit%20&state=Goa&tier=", nil))
	require.NoError(t, err)

	var body struct {
		Page   int               `json:"page"`
		Limit  int               `json:"limit"`
		Q      string            `json:"q"`
		Params map[string]string `json:"params"`
	}
	require.NoError(t, decode(resp.Body, &body))
	assert.Equal(t, 3, body.Page)
	assert.Equal(t, 20, body.Limit)
	assert.Equal(t, "iit", body.Q)
	assert.Equal(t, map[string]string{"state": "Goa", "q": "iit"}, body.Params)
}

func decode(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}
