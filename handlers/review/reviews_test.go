package review

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/handlers/handlertest"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryReviews struct {
	mu      sync.Mutex
	reviews []model.Review
}

func (m *memoryReviews) AddReview(_ context.Context, review *model.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	review.ID = uint(len(m.reviews) + 1)
	m.reviews = append(m.reviews, *review)
	return nil
}

func (m *memoryReviews) ReviewSummary(_ context.Context, collegeID string) (model.ReviewSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := model.ReviewSummary{Reviews: []model.Review{}}
	sum := 0
	for _, r := range m.reviews {
		if r.CollegeID == collegeID {
			summary.Reviews = append(summary.Reviews, r)
			sum += r.Rating
		}
	}
	summary.TotalReviews = int64(len(summary.Reviews))
	if summary.TotalReviews > 0 {
		summary.AvgRating = float64(sum) / float64(summary.TotalReviews)
	}
	return summary, nil
}

func newApp(store Store) *fiber.App {
	h := NewReviewHandler(store)
	app := fiber.New()
	app.Get("/api/reviews/:collegeId", h.GetReviews)
	app.Post("/api/reviews", h.CreateReview)
	return app
}

func TestReviewsWithoutDatabase(t *testing.T) {
	app := newApp(nil)

	resp, _ := handlertest.Do(t, app, "GET", "/api/reviews/bhu", nil, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = handlertest.Do(t, app, "POST", "/api/reviews", CreateReviewRequest{CollegeID: "bhu", UserID: "u1", Rating: 4}, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestCreateReviewValidation(t *testing.T) {
	app := newApp(&memoryReviews{})

	cases := map[string]CreateReviewRequest{
		"missing college": {UserID: "u1", Rating: 4},
		"missing user":    {CollegeID: "bhu", Rating: 4},
		"missing rating":  {CollegeID: "bhu", UserID: "u1"},
		"rating too high": {CollegeID: "bhu", UserID: "u1", Rating: 6},
		"comment too long": {
			CollegeID: "bhu", UserID: "u1", Rating: 3, Comment: strings.Repeat("a", 1001),
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp, _ := handlertest.Do(t, app, "POST", "/api/reviews", req, nil)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCreateAndListReviews(t *testing.T) {
	store := &memoryReviews{}
	app := newApp(store)

	resp, raw := handlertest.Do(t, app, "POST", "/api/reviews",
		CreateReviewRequest{CollegeID: "bhu", UserID: "u1", Rating: 5, Comment: "  Great campus "}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(raw))
	var created model.Review
	handlertest.Decode(t, raw, &created)
	assert.Equal(t, DefaultUserName, created.UserName)
	assert.Equal(t, model.ReviewApproved, created.Status)
	assert.Equal(t, "Great campus", created.Comment)

	resp, _ = handlertest.Do(t, app, "POST", "/api/reviews",
		CreateReviewRequest{CollegeID: "bhu", UserID: "u2", UserName: "Asha", Rating: 4}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, raw = handlertest.Do(t, app, "GET", "/api/reviews/bhu", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var summary model.ReviewSummary
	handlertest.Decode(t, raw, &summary)
	assert.EqualValues(t, 2, summary.TotalReviews)
	assert.InDelta(t, 4.5, summary.AvgRating, 0.001)

	resp, raw = handlertest.Do(t, app, "GET", "/api/reviews/iit-kanpur", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"reviews":[]`)
}
