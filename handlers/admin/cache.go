package admin

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
)

// InvalidateCache handles POST /api/admin/cache/invalidate. The shared hashes
// are rebuilt from disk before the response is sent.
func (h *AdminHandler) InvalidateCache(c *fiber.Ctx) error {
	if err := h.store.Invalidate(c.Context()); err != nil {
		logger.Error().Err(err).Msg("cache invalidation failed")
		return response.InternalServerError(c, "Failed to rebuild the cache")
	}
	h.purgeResponses(c.Context())

	status, err := h.store.Status(c.Context())
	if err != nil {
		return response.SuccessWithMessage(c, "Cache invalidated", nil)
	}
	return response.SuccessWithMessage(c, "Cache invalidated", status)
}

// CacheStatus handles GET /api/admin/cache/status
func (h *AdminHandler) CacheStatus(c *fiber.Ctx) error {
	status, err := h.store.Status(c.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to read cache status")
		return response.InternalServerError(c, "Cache is unreachable")
	}
	return response.Success(c, status)
}
