package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/reviewrank/internal/domain"
	"github.com/utafrali/reviewrank/internal/scoring"
	apperrors "github.com/utafrali/reviewrank/pkg/errors"
	"github.com/utafrali/reviewrank/pkg/tracing"
)

const tracerName = "github.com/utafrali/reviewrank/internal/service"

// ReviewLister loads the full review snapshot of a product.
type ReviewLister interface {
	ListAllByProductID(ctx context.Context, productID string) ([]domain.ProductReview, error)
}

// ScoringConfig holds the defaults applied when a request does not override them.
type ScoringConfig struct {
	Confidence float64
	Weights    scoring.Weights
	TopN       int
	Workers    int
	// ReferenceDate pins the "current" date used for day diffs. Zero means now.
	ReferenceDate time.Time
}

// RatingOptions override the defaults of a single rating computation.
type RatingOptions struct {
	Weights *scoring.Weights
	AsOf    time.Time
}

// RankOptions override the defaults of a single ranking computation. A nil
// Confidence uses the configured default; any set value is validated.
type RankOptions struct {
	Limit      int
	Confidence *float64
	AsOf       time.Time
}

// WilsonResult is a Wilson lower bound and the confidence it was computed at.
type WilsonResult struct {
	Confidence float64
	Score      float64
}

// ScoringService computes time-weighted ratings and helpfulness rankings.
// Every call recomputes from the full review snapshot; nothing is cached.
type ScoringService struct {
	reviews    ReviewLister
	cfg        ScoringConfig
	aggregator *scoring.Aggregator
	ranker     *scoring.Ranker
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// NewScoringService creates a scoring service. It fails when the configured
// defaults are themselves invalid.
func NewScoringService(reviews ReviewLister, cfg ScoringConfig, logger *slog.Logger) (*ScoringService, error) {
	aggregator, err := scoring.NewAggregator(cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("scoring weights: %w", err)
	}
	ranker, err := scoring.NewRanker(cfg.Confidence, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("scoring confidence: %w", err)
	}
	if cfg.TopN <= 0 {
		cfg.TopN = scoring.DefaultTopN
	}

	return &ScoringService{
		reviews:    reviews,
		cfg:        cfg,
		aggregator: aggregator,
		ranker:     ranker,
		tracer:     tracing.Tracer(tracerName),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// ProductRating computes the time-weighted rating of a product's reviews.
func (s *ScoringService) ProductRating(ctx context.Context, productID string, opts RatingOptions) (*domain.RatingBreakdown, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.aggregate",
		trace.WithAttributes(attribute.String("product_id", productID)))
	defer span.End()

	stored, err := s.reviews.ListAllByProductID(ctx, productID)
	if err != nil {
		return nil, s.fail(ctx, span, opProductRating, fmt.Errorf("list reviews: %w", err))
	}

	return s.rate(ctx, span, opProductRating, records(stored), opts)
}

// RateRecords computes the time-weighted rating of a caller-supplied collection.
func (s *ScoringService) RateRecords(ctx context.Context, recs []domain.ReviewRecord, opts RatingOptions) (*domain.RatingBreakdown, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.aggregate")
	defer span.End()

	return s.rate(ctx, span, opRateRecords, recs, opts)
}

// TopReviews ranks a product's reviews by Wilson lower bound and returns
// the most helpful ones with their stored metadata.
func (s *ScoringService) TopReviews(ctx context.Context, productID string, opts RankOptions) ([]domain.RankedReview, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.rank",
		trace.WithAttributes(attribute.String("product_id", productID)))
	defer span.End()

	stored, err := s.reviews.ListAllByProductID(ctx, productID)
	if err != nil {
		return nil, s.fail(ctx, span, opTopReviews, fmt.Errorf("list reviews: %w", err))
	}

	scored, err := s.rank(ctx, span, opTopReviews, records(stored), opts)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.ProductReview, len(stored))
	for i := range stored {
		byID[stored[i].ID] = &stored[i]
	}

	ranked := make([]domain.RankedReview, 0, len(scored))
	for _, sr := range scored {
		pr, ok := byID[sr.ID]
		if !ok {
			continue
		}
		ranked = append(ranked, domain.RankedReview{
			ProductReview:        *pr,
			HelpfulYes:           sr.HelpfulYes,
			HelpfulNo:            sr.HelpfulNo,
			TotalVotes:           sr.Votes.TotalVotes,
			PositiveNegativeDiff: sr.PositiveNegativeDiff,
			AverageRatio:         sr.AverageRatio,
			WilsonScore:          sr.WilsonScore,
		})
	}
	return ranked, nil
}

// RankRecords ranks a caller-supplied collection by Wilson lower bound.
func (s *ScoringService) RankRecords(ctx context.Context, recs []domain.ReviewRecord, opts RankOptions) ([]domain.ScoredReview, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.rank")
	defer span.End()

	return s.rank(ctx, span, opRankRecords, recs, opts)
}

// WilsonScore returns the Wilson lower bound for a vote tally. A nil
// confidence uses the configured default.
func (s *ScoringService) WilsonScore(ctx context.Context, up, down int, confidence *float64) (WilsonResult, error) {
	start := time.Now()
	defer func() { scoringDuration.WithLabelValues(opWilson).Observe(time.Since(start).Seconds()) }()

	c := s.cfg.Confidence
	if confidence != nil {
		c = *confidence
	}
	score, err := scoring.WilsonLowerBound(up, down, c)
	if err != nil {
		return WilsonResult{}, s.fail(ctx, nil, opWilson, err)
	}
	return WilsonResult{Confidence: c, Score: score}, nil
}

func (s *ScoringService) rate(ctx context.Context, span trace.Span, op string, recs []domain.ReviewRecord, opts RatingOptions) (*domain.RatingBreakdown, error) {
	start := time.Now()
	defer func() { scoringDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()
	scoringCollectionSize.WithLabelValues(op).Observe(float64(len(recs)))

	aggregator := s.aggregator
	if opts.Weights != nil {
		var err error
		if aggregator, err = scoring.NewAggregator(*opts.Weights); err != nil {
			return nil, s.fail(ctx, span, op, err)
		}
	}

	asOf := s.asOf(opts.AsOf)
	reviews, err := scoring.NewCollection(recs, asOf)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	breakdown, err := aggregator.Aggregate(reviews)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	span.SetAttributes(
		attribute.Int("review_count", breakdown.ReviewCount),
		attribute.Float64("time_weighted_rating", breakdown.TimeWeightedRating),
	)
	s.logger.DebugContext(ctx, "time-weighted rating computed",
		slog.String("operation", op),
		slog.Int("reviews", breakdown.ReviewCount),
		slog.Any("quartiles", breakdown.Quartiles),
		slog.String("weights", aggregator.Weights().String()),
		slog.String("as_of", asOf.Format(time.DateOnly)),
	)
	return breakdown, nil
}

func (s *ScoringService) rank(ctx context.Context, span trace.Span, op string, recs []domain.ReviewRecord, opts RankOptions) ([]domain.ScoredReview, error) {
	start := time.Now()
	defer func() { scoringDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()
	scoringCollectionSize.WithLabelValues(op).Observe(float64(len(recs)))

	ranker := s.ranker
	if opts.Confidence != nil && *opts.Confidence != ranker.Confidence() {
		var err error
		if ranker, err = scoring.NewRanker(*opts.Confidence, s.cfg.Workers); err != nil {
			return nil, s.fail(ctx, span, op, err)
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.TopN
	}

	reviews, err := scoring.NewCollection(recs, s.asOf(opts.AsOf))
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	top, err := ranker.Top(ctx, reviews, limit)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	span.SetAttributes(
		attribute.Int("review_count", len(reviews)),
		attribute.Int("returned", len(top)),
		attribute.Float64("confidence", ranker.Confidence()),
	)
	s.logger.DebugContext(ctx, "reviews ranked",
		slog.String("operation", op),
		slog.Int("reviews", len(reviews)),
		slog.Int("returned", len(top)),
		slog.Float64("confidence", ranker.Confidence()),
	)
	return top, nil
}

func (s *ScoringService) asOf(override time.Time) time.Time {
	switch {
	case !override.IsZero():
		return override
	case !s.cfg.ReferenceDate.IsZero():
		return s.cfg.ReferenceDate
	default:
		return s.now().UTC()
	}
}

// fail records a scoring failure and converts core errors into AppErrors.
func (s *ScoringService) fail(ctx context.Context, span trace.Span, op string, err error) error {
	reason, mapped := classify(err)
	scoringFailures.WithLabelValues(op, reason).Inc()
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
	}
	s.logger.WarnContext(ctx, "review scoring failed",
		slog.String("operation", op),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
	return mapped
}

func classify(err error) (string, error) {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, scoring.ErrMalformedVoteEncoding):
		return "malformed_vote_encoding", apperrors.InvalidInput(err.Error())
	case errors.Is(err, scoring.ErrNegativeVotes):
		return "negative_votes", apperrors.InvalidInput(err.Error())
	case errors.Is(err, scoring.ErrInvalidRating):
		return "invalid_rating", apperrors.InvalidInput(err.Error())
	case errors.Is(err, scoring.ErrInvalidWeightConfiguration):
		return "invalid_weights", apperrors.InvalidInput(err.Error())
	case errors.Is(err, scoring.ErrInvalidConfidenceLevel):
		return "invalid_confidence", apperrors.InvalidInput(err.Error())
	case errors.Is(err, scoring.ErrEmptyCollection):
		return "empty_collection", apperrors.Unprocessable(err.Error())
	case errors.Is(err, scoring.ErrInsufficientBandData):
		return "insufficient_band_data", apperrors.Unprocessable(err.Error())
	case errors.Is(err, scoring.ErrFutureReview):
		return "future_review", apperrors.Unprocessable(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled", err
	case errors.As(err, &appErr):
		return "storage", err
	default:
		return "internal", err
	}
}

func records(stored []domain.ProductReview) []domain.ReviewRecord {
	recs := make([]domain.ReviewRecord, len(stored))
	for i := range stored {
		recs[i] = stored[i].Record()
	}
	return recs
}
