package user

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/services/userdata"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/query"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
	"github.com/sahilchouksey/college-explorer-api/utils/validation"
)

// SaveChoicesRequest replaces a user's choice list.
type SaveChoicesRequest struct {
	UID     string          `json:"uid" validate:"required,max=128"`
	Choices json.RawMessage `json:"choices"`
}

// ShareRequest publishes a snapshot of a choice list.
type ShareRequest struct {
	Choices  json.RawMessage `json:"choices"`
	UserName string          `json:"userName" validate:"max=100"`
}

// UserHandler handles choice lists and shared roadmaps
type UserHandler struct {
	data      *userdata.Service
	validator *validation.Validator
}

// NewUserHandler creates a new user handler
func NewUserHandler(data *userdata.Service) *UserHandler {
	return &UserHandler{
		data:      data,
		validator: validation.NewValidator(),
	}
}

// GetChoices handles GET /api/user/choices?uid=
func (h *UserHandler) GetChoices(c *fiber.Ctx) error {
	uid := query.Trimmed(c, "uid")
	if uid == "" {
		return response.BadRequest(c, "UID required")
	}

	choices, err := h.data.Choices(c.Context(), uid)
	if err != nil {
		logger.Error().Err(err).Str("uid", uid).Msg("failed to load choices")
		return response.InternalServerError(c, "Failed to load choices")
	}
	if choices == nil {
		choices = model.ChoiceList{}
	}
	return response.Success(c, choices)
}

// SaveChoices handles POST /api/user/choices
func (h *UserHandler) SaveChoices(c *fiber.Ctx) error {
	var req SaveChoicesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.UID = validation.SanitizeString(req.UID)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "UID required")
	}

	choices, ok := decodeList(req.Choices)
	if !ok {
		return response.BadRequest(c, "Choices must be an array")
	}

	if err := h.data.SaveChoices(c.Context(), req.UID, choices); err != nil {
		logger.Error().Err(err).Str("uid", req.UID).Msg("failed to save choices")
		return response.InternalServerError(c, "Failed to save choices")
	}
	return response.Success(c, fiber.Map{"count": len(choices)})
}

// Share handles POST /api/user/share
func (h *UserHandler) Share(c *fiber.Ctx) error {
	var req ShareRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.UserName = validation.SanitizeString(req.UserName)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, validation.Message(err))
	}

	choices, ok := decodeList(req.Choices)
	if !ok {
		return response.BadRequest(c, "Cannot share an empty list")
	}

	id, err := h.data.Share(c.Context(), choices, req.UserName)
	if err != nil {
		if errors.Is(err, userdata.ErrEmptyList) {
			return response.BadRequest(c, "Cannot share an empty list")
		}
		logger.Error().Err(err).Msg("failed to share choices")
		return response.InternalServerError(c, "Failed to share list")
	}
	return response.Success(c, fiber.Map{"shareId": id})
}

// GetShared handles GET /api/user/share/:id
func (h *UserHandler) GetShared(c *fiber.Ctx) error {
	list, err := h.data.Shared(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, userdata.ErrNotFound) {
			return response.NotFound(c, "Shared roadmap not found")
		}
		logger.Error().Err(err).Msg("failed to load shared list")
		return response.InternalServerError(c, "Failed to load shared list")
	}
	return response.Success(c, list)
}

// decodeList accepts only a JSON array.
func decodeList(raw json.RawMessage) (model.ChoiceList, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var list model.ChoiceList
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return nil, false
	}
	return list, true
}
