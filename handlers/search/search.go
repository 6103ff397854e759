package search

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/services/catalog"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/query"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
)

// SearchHandler serves full search and type-ahead suggestions
type SearchHandler struct {
	catalog *catalog.Service
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(catalogService *catalog.Service) *SearchHandler {
	return &SearchHandler{catalog: catalogService}
}

// Search handles GET /api/search?q=&limit=
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	q := query.Trimmed(c, "q")
	if q == "" {
		return response.BadRequest(c, "Query parameter q is required")
	}

	results, err := h.catalog.Search(c.Context(), q, query.Int(c, "limit", catalog.DefaultSearchLimit))
	if err != nil {
		logger.Error().Err(err).Str("q", q).Msg("search failed")
		return response.InternalServerError(c, "Search failed")
	}

	return response.Success(c, results)
}

// Suggest handles GET /api/suggest?q=&type=college|exam
func (h *SearchHandler) Suggest(c *fiber.Ctx) error {
	kind := query.Trimmed(c, "type")
	if kind != "" && kind != catalog.KindCollege && kind != catalog.KindExam {
		return response.BadRequest(c, "type must be college or exam")
	}

	suggestions, err := h.catalog.Suggest(c.Context(), query.Trimmed(c, "q"), kind)
	if err != nil {
		logger.Error().Err(err).Msg("suggest failed")
		return response.InternalServerError(c, "Search failed")
	}

	return response.Success(c, suggestions)
}
