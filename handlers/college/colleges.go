package college

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/services/catalog"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/query"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
	"github.com/sahilchouksey/college-explorer-api/utils/validation"
)

// collegeParams are the query parameters /api/colleges is memoized on.
var collegeParams = []string{"state", "district", "q", "tier", "course", "exam", "sortBy", "order", "page", "limit"}

// CollegeHandler handles college browsing requests
type CollegeHandler struct {
	store       *datastore.Store
	catalog     *catalog.Service
	cache       *cache.Store
	responseTTL time.Duration
}

// NewCollegeHandler creates a new college handler. responseCache may be nil.
func NewCollegeHandler(store *datastore.Store, catalogService *catalog.Service, responseCache *cache.Store, responseTTL time.Duration) *CollegeHandler {
	return &CollegeHandler{
		store:       store,
		catalog:     catalogService,
		cache:       responseCache,
		responseTTL: responseTTL,
	}
}

// ListColleges handles GET /api/colleges
func (h *CollegeHandler) ListColleges(c *fiber.Ctx) error {
	key := cache.ResponseKey("colleges", query.Params(c, collegeParams...))
	if hit, err := response.SendCached(c, h.cache, key); hit {
		return err
	}

	page, err := h.catalog.ListColleges(c.Context(), catalog.CollegeQuery{
		State:    query.Trimmed(c, "state"),
		District: query.Trimmed(c, "district"),
		Q:        query.Trimmed(c, "q"),
		Tier:     query.Trimmed(c, "tier"),
		Course:   query.Trimmed(c, "course"),
		Exam:     query.Trimmed(c, "exam"),
		SortBy:   query.Trimmed(c, "sortBy"),
		Order:    query.Trimmed(c, "order"),
		Page:     query.Int(c, "page", 1),
		Limit:    query.Int(c, "limit", catalog.DefaultPageSize),
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to list colleges")
		return response.InternalServerError(c, "Failed to load colleges")
	}

	colleges := page.Colleges
	if colleges == nil {
		colleges = []model.College{}
	}

	return response.SendAndCache(c, h.cache, key, h.responseTTL, response.PaginatedResponse{
		Success:    true,
		Data:       colleges,
		Pagination: response.CalculatePagination(page.Page, page.Limit, page.Total),
	})
}

// GetCollege handles GET /api/college/:id
func (h *CollegeHandler) GetCollege(c *fiber.Ctx) error {
	college, err := h.store.CollegeByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return response.NotFound(c, "College not found")
		}
		logger.Error().Err(err).Str("id", c.Params("id")).Msg("failed to load college")
		return response.InternalServerError(c, "Failed to load colleges")
	}

	return response.Success(c, college)
}

// BatchColleges handles GET /api/colleges/batch?ids=a,b
func (h *CollegeHandler) BatchColleges(c *fiber.Ctx) error {
	ids := validation.SplitIDs(c.Query("ids"))
	if len(ids) == 0 {
		return response.Success(c, []model.College{})
	}
	if len(ids) > validation.MaxBatchIDs {
		return response.BadRequest(c, "A maximum of 50 IDs can be requested at once")
	}

	colleges, err := h.store.CollegesByIDs(c.Context(), ids)
	if err != nil {
		logger.Error().Err(err).Int("ids", len(ids)).Msg("batch college lookup failed")
		return response.InternalServerError(c, "Failed to load colleges")
	}

	return response.Success(c, colleges)
}

// StateStats handles GET /api/states/stats
func (h *CollegeHandler) StateStats(c *fiber.Ctx) error {
	key := cache.ResponseKey("states:stats", query.Params(c, "type"))
	if hit, err := response.SendCached(c, h.cache, key); hit {
		return err
	}

	stats, err := h.store.StateStats(c.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to compute state stats")
		return response.InternalServerError(c, "Failed to load colleges")
	}

	// ?type=State or ?type=UT narrows the list; totals stay global
	if typ := query.Trimmed(c, "type"); typ != "" {
		filtered := make([]datastore.StateCount, 0, len(stats.States))
		for _, s := range stats.States {
			if s.Type == typ {
				filtered = append(filtered, s)
			}
		}
		stats.States = filtered
	}

	return response.SendAndCache(c, h.cache, key, h.responseTTL, response.Response{
		Success: true,
		Data:    stats,
	})
}

// Filters handles GET /api/filters
func (h *CollegeHandler) Filters(c *fiber.Ctx) error {
	filters, err := h.store.Filters(c.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to load filters")
		return response.InternalServerError(c, "Failed to load colleges")
	}

	return response.Success(c, filters)
}
