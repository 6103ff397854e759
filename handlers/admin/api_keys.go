package admin

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/services/apikey"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
)

// GenerateKeyRequest selects the tier of a new key. An empty tier is free.
type GenerateKeyRequest struct {
	Tier string `json:"tier" validate:"omitempty,oneof=free pro enterprise"`
}

// ListAPIKeys handles GET /api/admin/api-keys
func (h *AdminHandler) ListAPIKeys(c *fiber.Ctx) error {
	keys, err := h.keys.List(c.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to list API keys")
		return response.InternalServerError(c, "Failed to list API keys")
	}
	if keys == nil {
		keys = []apikey.Key{}
	}
	return response.Success(c, keys)
}

// GenerateAPIKey handles POST /api/admin/api-keys
func (h *AdminHandler) GenerateAPIKey(c *fiber.Ctx) error {
	var req GenerateKeyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}
	req.Tier = strings.ToLower(strings.TrimSpace(req.Tier))
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "tier must be one of free, pro, enterprise")
	}

	key, err := h.keys.Generate(c.Context(), req.Tier)
	if err != nil {
		if errors.Is(err, apikey.ErrUnknownTier) {
			return response.BadRequest(c, err.Error())
		}
		logger.Error().Err(err).Msg("failed to generate API key")
		return response.InternalServerError(c, "Failed to generate API key")
	}

	logger.Info().Str("tier", key.Tier).Msg("API key generated")
	return response.Created(c, key)
}

// DeactivateAPIKey handles DELETE /api/admin/api-keys/:id
func (h *AdminHandler) DeactivateAPIKey(c *fiber.Ctx) error {
	key := strings.TrimSpace(c.Params("id"))
	if err := h.keys.Deactivate(c.Context(), key); err != nil {
		if errors.Is(err, apikey.ErrInvalidKey) {
			return response.NotFound(c, "API key not found")
		}
		logger.Error().Err(err).Msg("failed to deactivate API key")
		return response.InternalServerError(c, "Failed to deactivate API key")
	}
	return response.SuccessWithMessage(c, "API key deactivated", nil)
}
