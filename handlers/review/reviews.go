package review

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
	"github.com/sahilchouksey/college-explorer-api/utils/validation"
)

// DefaultUserName is shown for reviews posted without a name.
const DefaultUserName = "Anonymous Student"

// Store persists reviews. *database.GORMStore implements it.
type Store interface {
	AddReview(ctx context.Context, review *model.Review) error
	ReviewSummary(ctx context.Context, collegeID string) (model.ReviewSummary, error)
}

// CreateReviewRequest represents a review submission
type CreateReviewRequest struct {
	CollegeID string `json:"collegeId" validate:"required,max=255"`
	UserID    string `json:"userId" validate:"required,max=255"`
	UserName  string `json:"userName" validate:"max=255"`
	Rating    int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment   string `json:"comment" validate:"max=1000"`
}

// ReviewHandler handles college reviews
type ReviewHandler struct {
	store     Store
	validator *validation.Validator
}

// NewReviewHandler creates a new review handler. A nil store answers every
// request with 503.
func NewReviewHandler(store Store) *ReviewHandler {
	return &ReviewHandler{
		store:     store,
		validator: validation.NewValidator(),
	}
}

// GetReviews handles GET /api/reviews/:collegeId
func (h *ReviewHandler) GetReviews(c *fiber.Ctx) error {
	if h.store == nil {
		return response.ServiceUnavailable(c, "Reviews are not available")
	}

	collegeID := strings.TrimSpace(c.Params("collegeId"))
	summary, err := h.store.ReviewSummary(c.Context(), collegeID)
	if err != nil {
		logger.Error().Err(err).Str("college_id", collegeID).Msg("failed to fetch reviews")
		return response.InternalServerError(c, "Failed to fetch reviews")
	}
	if summary.Reviews == nil {
		summary.Reviews = []model.Review{}
	}
	return response.Success(c, summary)
}

// CreateReview handles POST /api/reviews
func (h *ReviewHandler) CreateReview(c *fiber.Ctx) error {
	if h.store == nil {
		return response.ServiceUnavailable(c, "Reviews are not available")
	}

	var req CreateReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.CollegeID = validation.SanitizeString(req.CollegeID)
	req.UserID = validation.SanitizeString(req.UserID)
	req.UserName = validation.SanitizeString(req.UserName)
	req.Comment = validation.SanitizeString(req.Comment)

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ErrorWithDetails(c, fiber.StatusBadRequest, "Invalid review", "VALIDATION_ERROR", validation.Message(err))
	}
	if req.UserName == "" {
		req.UserName = DefaultUserName
	}

	review := &model.Review{
		CollegeID: req.CollegeID,
		UserID:    req.UserID,
		UserName:  req.UserName,
		Rating:    req.Rating,
		Comment:   req.Comment,
		Status:    model.ReviewApproved,
	}
	if err := h.store.AddReview(c.Context(), review); err != nil {
		logger.Error().Err(err).Str("college_id", req.CollegeID).Msg("failed to save review")
		return response.InternalServerError(c, "Failed to save review")
	}

	return response.Created(c, review)
}
