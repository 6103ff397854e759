package admin

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/services/backup"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
)

// RestoreRequest names the snapshot to restore.
type RestoreRequest struct {
	Key string `json:"key" validate:"required"`
}

// BackupLedger handles POST /api/admin/ledger/backup
func (h *AdminHandler) BackupLedger(c *fiber.Ctx) error {
	if h.backup == nil {
		return response.ServiceUnavailable(c, "Ledger backups are not configured")
	}

	key, err := h.backup.Backup(c.Context())
	if err != nil {
		logger.Error().Err(err).Msg("ledger backup failed")
		return response.InternalServerError(c, "Failed to back up the ledger")
	}
	return response.Created(c, fiber.Map{"key": key})
}

// ListSnapshots handles GET /api/admin/ledger/snapshots
func (h *AdminHandler) ListSnapshots(c *fiber.Ctx) error {
	if h.backup == nil {
		return response.ServiceUnavailable(c, "Ledger backups are not configured")
	}

	keys, err := h.backup.Snapshots(c.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to list ledger snapshots")
		return response.InternalServerError(c, "Failed to list snapshots")
	}
	if keys == nil {
		keys = []string{}
	}
	return response.Success(c, keys)
}

// RestoreLedger handles POST /api/admin/ledger/restore. The restored
// overrides are served once the cache has been rebuilt.
func (h *AdminHandler) RestoreLedger(c *fiber.Ctx) error {
	if h.backup == nil {
		return response.ServiceUnavailable(c, "Ledger backups are not configured")
	}

	var req RestoreRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Key = strings.TrimSpace(req.Key)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Snapshot key is required")
	}

	ledger, err := h.backup.Restore(c.Context(), req.Key)
	if err != nil {
		if errors.Is(err, backup.ErrInvalidSnapshot) {
			return response.BadRequest(c, err.Error())
		}
		logger.Error().Err(err).Str("key", req.Key).Msg("ledger restore failed")
		return response.InternalServerError(c, "Failed to restore the ledger")
	}

	if err := h.store.Invalidate(c.Context()); err != nil {
		logger.Error().Err(err).Msg("cache rebuild after ledger restore failed")
		return response.InternalServerError(c, "Ledger restored but the cache could not be rebuilt")
	}
	h.purgeResponses(c.Context())

	return response.SuccessWithMessage(c, "Ledger restored", fiber.Map{
		"key":     req.Key,
		"added":   len(ledger.Added),
		"deleted": len(ledger.Deleted),
	})
}
