package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/reviewrank/internal/domain"
	"github.com/utafrali/reviewrank/internal/service"
	"github.com/utafrali/reviewrank/pkg/httputil"
	"github.com/utafrali/reviewrank/pkg/middleware"
	"github.com/utafrali/reviewrank/pkg/pagination"
	"github.com/utafrali/reviewrank/pkg/validator"
)

// ReviewService is the review storage API used by the handlers.
type ReviewService interface {
	CreateReview(ctx context.Context, input *service.CreateReviewInput) (*domain.ProductReview, error)
	ListReviews(ctx context.Context, productID string, params pagination.Params) (pagination.Result[domain.ProductReview], error)
	Vote(ctx context.Context, productID string, vote domain.VoteInput) (*domain.ProductReview, error)
}

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateReviewRequest is the JSON request body for creating a review.
type CreateReviewRequest struct {
	ReviewerName string `json:"reviewer_name" validate:"max=255"`
	Rating       int    `json:"rating" validate:"required,min=1,max=5"`
	Summary      string `json:"summary" validate:"max=255"`
	Body         string `json:"body" validate:"max=20000"`
}

// VoteRequest is the JSON request body for voting on a review.
type VoteRequest struct {
	Helpful *bool `json:"helpful" validate:"required"`
}

// --- Handlers ---

// ListReviews handles GET /api/v1/products/{productId}/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	result, err := h.service.ListReviews(r.Context(), productID, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// CreateReview handles POST /api/v1/products/{productId}/reviews.
// Requires X-User-ID header.
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.service.CreateReview(r.Context(), &service.CreateReviewInput{
		ProductID:    productID,
		UserID:       userID,
		ReviewerName: req.ReviewerName,
		Rating:       req.Rating,
		Summary:      req.Summary,
		Body:         req.Body,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: review})
}

// Vote handles POST /api/v1/products/{productId}/reviews/{reviewId}/votes.
// Requires X-User-ID header.
func (h *ReviewHandler) Vote(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<10)

	var req VoteRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.service.Vote(r.Context(), productID, domain.VoteInput{
		ReviewID: reviewID.String(),
		UserID:   userID,
		Helpful:  *req.Helpful,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: middleware.UserIDHeader + " header is required"},
		})
		return "", false
	}
	return userID, true
}
