package admin

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
	"github.com/sahilchouksey/college-explorer-api/utils/validation"
)

// collegeInput holds the fields of a submitted college that are checked
// before the record reaches the ledger.
type collegeInput struct {
	Name        string `json:"name" validate:"required,max=300"`
	OfficialURL string `json:"officialUrl" validate:"omitempty,url"`
}

// ListColleges handles GET /api/admin/colleges
func (h *AdminHandler) ListColleges(c *fiber.Ctx) error {
	colleges, err := h.store.Colleges(c.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to list colleges for admin")
		return response.InternalServerError(c, "Failed to load colleges")
	}
	if colleges == nil {
		colleges = []model.College{}
	}

	return response.Success(c, fiber.Map{
		"colleges": colleges,
		"total":    len(colleges),
	})
}

// SaveCollege handles POST /api/admin/colleges. A body without an id adds a
// new college; an existing id replaces that record.
func (h *AdminHandler) SaveCollege(c *fiber.Ctx) error {
	var college model.College
	if err := c.BodyParser(&college); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	college.Name = validation.SanitizeString(college.Name)
	if college.Name == "" {
		return response.BadRequest(c, "College name is required")
	}
	if err := h.validator.ValidateStruct(collegeInput{
		Name:        college.Name,
		OfficialURL: strings.TrimSpace(college.OfficialURL),
	}); err != nil {
		return response.BadRequest(c, validation.Message(err))
	}

	saved, err := h.store.SaveCollege(c.Context(), college)
	if err != nil {
		if errors.Is(err, datastore.ErrInvalidCollege) {
			return response.BadRequest(c, "College name is required")
		}
		logger.Error().Err(err).Str("id", college.ID).Msg("failed to save college")
		return response.InternalServerError(c, "Failed to save college")
	}

	h.purgeResponses(c.Context())
	return response.SuccessWithMessage(c, "College saved", saved)
}

// DeleteCollege handles DELETE /api/admin/colleges/:id
func (h *AdminHandler) DeleteCollege(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.store.DeleteCollege(c.Context(), id); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return response.NotFound(c, "College not found")
		}
		logger.Error().Err(err).Str("id", id).Msg("failed to delete college")
		return response.InternalServerError(c, "Failed to delete college")
	}

	h.purgeResponses(c.Context())
	return response.SuccessWithMessage(c, "College deleted", fiber.Map{"id": id})
}
