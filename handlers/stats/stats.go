package stats

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
)

// AggregateTTL is how long the dashboard numbers are memoized.
const AggregateTTL = time.Hour

// StatsHandler serves the dashboard aggregates
type StatsHandler struct {
	store *datastore.Store
	cache *cache.Store
}

// NewStatsHandler creates a new stats handler. responseCache may be nil.
func NewStatsHandler(store *datastore.Store, responseCache *cache.Store) *StatsHandler {
	return &StatsHandler{store: store, cache: responseCache}
}

// Aggregate handles GET /api/stats/aggregate
func (h *StatsHandler) Aggregate(c *fiber.Ctx) error {
	key := cache.ResponseKey("stats:aggregate", nil)
	if hit, err := response.SendCached(c, h.cache, key); hit {
		return err
	}

	agg, err := h.store.Aggregate(c.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to compute aggregate stats")
		return response.InternalServerError(c, "Failed to compute statistics")
	}

	return response.SendAndCache(c, h.cache, key, AggregateTTL, response.Response{
		Success: true,
		Data:    agg,
	})
}
