package exam

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/services/catalog"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/query"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
)

// ExamHandler handles entrance exam requests
type ExamHandler struct {
	catalog *catalog.Service
}

// NewExamHandler creates a new exam handler
func NewExamHandler(catalogService *catalog.Service) *ExamHandler {
	return &ExamHandler{catalog: catalogService}
}

// ListExams handles GET /api/exams
func (h *ExamHandler) ListExams(c *fiber.Ctx) error {
	exams, err := h.catalog.ListExams(c.Context(), catalog.ExamQuery{
		Type: query.Trimmed(c, "type"),
		Q:    query.Trimmed(c, "q"),
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to list exams")
		return response.InternalServerError(c, "Failed to load exams")
	}

	return response.Success(c, exams)
}

// GetExam handles GET /api/exam/:id
func (h *ExamHandler) GetExam(c *fiber.Ctx) error {
	exam, err := h.catalog.ExamDetail(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return response.NotFound(c, "Exam not found")
		}
		logger.Error().Err(err).Str("id", c.Params("id")).Msg("failed to load exam")
		return response.InternalServerError(c, "Failed to load exams")
	}

	return response.Success(c, exam)
}
