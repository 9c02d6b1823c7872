package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/reviewrank/internal/domain"
	"github.com/utafrali/reviewrank/internal/scoring"
	"github.com/utafrali/reviewrank/internal/service"
	"github.com/utafrali/reviewrank/pkg/httputil"
	"github.com/utafrali/reviewrank/pkg/validator"
)

func init() {
	err := validator.RegisterRule("votes", "must be a vote encoding like [helpful, total]", func(v string) bool {
		_, err := scoring.DecodeVotes(v)
		return err == nil
	})
	if err != nil {
		panic(err)
	}
}

// ScoringService is the rating and ranking API used by the handlers.
type ScoringService interface {
	ProductRating(ctx context.Context, productID string, opts service.RatingOptions) (*domain.RatingBreakdown, error)
	TopReviews(ctx context.Context, productID string, opts service.RankOptions) ([]domain.RankedReview, error)
	RateRecords(ctx context.Context, recs []domain.ReviewRecord, opts service.RatingOptions) (*domain.RatingBreakdown, error)
	RankRecords(ctx context.Context, recs []domain.ReviewRecord, opts service.RankOptions) ([]domain.ScoredReview, error)
	WilsonScore(ctx context.Context, up, down int, confidence *float64) (service.WilsonResult, error)
}

// ScoringHandler handles HTTP requests for rating and ranking endpoints.
type ScoringHandler struct {
	service ScoringService
	logger  *slog.Logger
}

// NewScoringHandler creates a new scoring HTTP handler.
func NewScoringHandler(svc ScoringService, logger *slog.Logger) *ScoringHandler {
	return &ScoringHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ReviewRecordRequest is one review of a caller-supplied collection.
type ReviewRecordRequest struct {
	ID         string    `json:"id" validate:"required"`
	Rating     int       `json:"rating" validate:"required,min=1,max=5"`
	Helpful    string    `json:"helpful" validate:"required,votes"`
	ReviewedAt time.Time `json:"reviewed_at" validate:"required"`
}

// RateRequest is the JSON request body for rating a review collection.
type RateRequest struct {
	AsOf    string                `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Weights []float64             `json:"weights" validate:"omitempty,len=4"`
	Reviews []ReviewRecordRequest `json:"reviews" validate:"dive"`
}

// RankRequest is the JSON request body for ranking a review collection.
type RankRequest struct {
	AsOf       string                `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Confidence *float64              `json:"confidence"` // nil uses the configured default
	Limit      int                   `json:"limit" validate:"omitempty,min=1,max=1000"`
	Reviews    []ReviewRecordRequest `json:"reviews" validate:"dive"`
}

// WilsonResponse is the body of a Wilson score lookup.
type WilsonResponse struct {
	Up          int     `json:"up"`
	Down        int     `json:"down"`
	Confidence  float64 `json:"confidence"`
	WilsonScore float64 `json:"wilson_score"`
}

// --- Handlers ---

// ProductRating handles GET /api/v1/products/{productId}/rating
func (h *ScoringHandler) ProductRating(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var opts service.RatingOptions
	q := r.URL.Query()
	if v := q.Get("weights"); v != "" {
		weights, err := scoring.ParseWeights(v)
		if err != nil {
			writeBadParam(w, "weights", err)
			return
		}
		opts.Weights = &weights
	}
	asOf, err := parseDate(q.Get("as_of"))
	if err != nil {
		writeBadParam(w, "as_of", err)
		return
	}
	opts.AsOf = asOf

	breakdown, err := h.service.ProductRating(r.Context(), productID, opts)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: breakdown})
}

// TopReviews handles GET /api/v1/products/{productId}/reviews/top
func (h *ScoringHandler) TopReviews(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var opts service.RankOptions
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadParam(w, "limit", fmt.Errorf("must be a positive integer"))
			return
		}
		opts.Limit = n
	}
	if v := q.Get("confidence"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeBadParam(w, "confidence", err)
			return
		}
		opts.Confidence = &c
	}
	asOf, err := parseDate(q.Get("as_of"))
	if err != nil {
		writeBadParam(w, "as_of", err)
		return
	}
	opts.AsOf = asOf

	ranked, err := h.service.TopReviews(r.Context(), productID, opts)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ranked})
}

// RateRecords handles POST /api/v1/scoring/rating
func (h *ScoringHandler) RateRecords(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req RateRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	var opts service.RatingOptions
	if len(req.Weights) > 0 {
		var weights scoring.Weights
		copy(weights[:], req.Weights)
		opts.Weights = &weights
	}
	opts.AsOf, _ = parseDate(req.AsOf)

	breakdown, err := h.service.RateRecords(r.Context(), toRecords(req.Reviews), opts)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: breakdown})
}

// RankRecords handles POST /api/v1/scoring/rank
func (h *ScoringHandler) RankRecords(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req RankRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	opts := service.RankOptions{Limit: req.Limit, Confidence: req.Confidence}
	opts.AsOf, _ = parseDate(req.AsOf)

	ranked, err := h.service.RankRecords(r.Context(), toRecords(req.Reviews), opts)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ranked})
}

// Wilson handles GET /api/v1/scoring/wilson?up=&down=&confidence=
func (h *ScoringHandler) Wilson(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	up, err := strconv.Atoi(q.Get("up"))
	if err != nil {
		writeBadParam(w, "up", err)
		return
	}
	down, err := strconv.Atoi(q.Get("down"))
	if err != nil {
		writeBadParam(w, "down", err)
		return
	}
	var confidence *float64
	if v := q.Get("confidence"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeBadParam(w, "confidence", err)
			return
		}
		confidence = &c
	}

	res, err := h.service.WilsonScore(r.Context(), up, down, confidence)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: WilsonResponse{
		Up:          up,
		Down:        down,
		Confidence:  res.Confidence,
		WilsonScore: res.Score,
	}})
}

func toRecords(reqs []ReviewRecordRequest) []domain.ReviewRecord {
	recs := make([]domain.ReviewRecord, len(reqs))
	for i, rr := range reqs {
		recs[i] = domain.ReviewRecord{
			ID:           rr.ID,
			Rating:       rr.Rating,
			VoteEncoding: rr.Helpful,
			ReviewedAt:   rr.ReviewedAt,
		}
	}
	return recs
}

// parseDate parses an optional YYYY-MM-DD date as midnight UTC.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func writeBadParam(w http.ResponseWriter, name string, err error) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:    "INVALID_PARAMETER",
			Message: fmt.Sprintf("invalid %s: %v", name, err),
		},
	})
}
