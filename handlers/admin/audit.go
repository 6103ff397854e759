package admin

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/query"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
)

// ListAuditLogs retrieves admin audit logs with pagination
// GET /api/admin/audit
func (h *AdminHandler) ListAuditLogs(c *fiber.Ctx) error {
	if h.db == nil {
		return response.ServiceUnavailable(c, "Audit log requires a database")
	}

	meta := response.CalculatePagination(query.Int(c, "page", 1), query.Int(c, "limit", 20), 0)
	logs, total, err := h.db.AuditLogs(c.Context(), query.Trimmed(c, "action"), meta.Page, meta.Limit)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch audit logs")
		return response.InternalServerError(c, "Failed to fetch audit logs")
	}

	return response.Paginated(c, logs, response.CalculatePagination(meta.Page, meta.Limit, int(total)))
}
