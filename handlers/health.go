package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/database"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
)

// Component states reported by /api/health.
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusDisabled = "disabled"
)

const healthTimeout = 2 * time.Second

// HealthReport is the /api/health body.
type HealthReport struct {
	Status   string    `json:"status"`
	Time     time.Time `json:"time"`
	Cache    string    `json:"cache"`
	Redis    string    `json:"redis"`
	Database string    `json:"database"`
}

// HealthHandler reports process and dependency health
type HealthHandler struct {
	provider *cache.ClientProvider
	store    *datastore.Store
	db       *database.GORMStore
}

// NewHealthHandler creates a new health handler. db may be nil.
func NewHealthHandler(provider *cache.ClientProvider, store *datastore.Store, db *database.GORMStore) *HealthHandler {
	return &HealthHandler{provider: provider, store: store, db: db}
}

// Ping handles GET /ping
func (h *HealthHandler) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Check handles GET /api/health. The endpoint answers 200 while the process
// is serving; a failing dependency only changes status to "degraded".
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthTimeout)
	defer cancel()

	report := HealthReport{
		Status:   "ok",
		Time:     time.Now().UTC(),
		Cache:    h.store.State().String(),
		Redis:    StatusUp,
		Database: StatusDisabled,
	}

	if err := h.provider.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("health check: redis unreachable")
		report.Redis = StatusDown
		report.Status = "degraded"
	}

	if h.db != nil {
		report.Database = StatusUp
		if err := h.db.HealthCheck(ctx); err != nil {
			logger.Warn().Err(err).Msg("health check: database unreachable")
			report.Database = StatusDown
			report.Status = "degraded"
		}
	}

	return c.JSON(report)
}
