package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/reviewrank/internal/domain"
	"github.com/utafrali/reviewrank/internal/scoring"
	apperrors "github.com/utafrali/reviewrank/pkg/errors"
)

var refDate = time.Date(2014, 12, 8, 0, 0, 0, 0, time.UTC)

func daysBefore(n int) time.Time {
	return refDate.AddDate(0, 0, -n)
}

func newTestScoringService(t *testing.T, repo *mockReviewRepository) *ScoringService {
	t.Helper()
	svc, err := NewScoringService(repo, ScoringConfig{
		Confidence:    0.95,
		Weights:       scoring.DefaultWeights,
		TopN:          20,
		Workers:       2,
		ReferenceDate: refDate,
	}, newTestLogger())
	require.NoError(t, err)
	return svc
}

// bandedReviews returns eight reviews one day apart whose ratings fall by one
// star per recency band: 5,5 | 4,4 | 3,3 | 2,2.
func bandedReviews() []domain.ProductReview {
	ratings := []int{5, 5, 4, 4, 3, 3, 2, 2}
	helpful := []string{"[0, 0]", "[10, 10]", "[1, 4]", "[5, 10]", "[0, 3]", "[2, 2]", "[0, 0]", "[30, 40]"}
	out := make([]domain.ProductReview, len(ratings))
	for i := range ratings {
		out[i] = domain.ProductReview{
			ID:         string(rune('a' + i)),
			ProductID:  "prod-1",
			Rating:     ratings[i],
			Helpful:    helpful[i],
			ReviewedAt: daysBefore(i + 1),
		}
	}
	return out
}

func TestNewScoringService_InvalidDefaults(t *testing.T) {
	repo := new(mockReviewRepository)

	_, err := NewScoringService(repo, ScoringConfig{Confidence: 0.95, Weights: scoring.Weights{50, 50, 50, 50}}, newTestLogger())
	assert.ErrorIs(t, err, scoring.ErrInvalidWeightConfiguration)

	_, err = NewScoringService(repo, ScoringConfig{Confidence: 1, Weights: scoring.DefaultWeights}, newTestLogger())
	assert.ErrorIs(t, err, scoring.ErrInvalidConfidenceLevel)
}

func TestProductRating(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newTestScoringService(t, repo)
	ctx := context.Background()
	repo.On("ListAllByProductID", ctx, "prod-1").Return(bandedReviews(), nil)

	breakdown, err := svc.ProductRating(ctx, "prod-1", RatingOptions{})

	require.NoError(t, err)
	assert.Equal(t, 8, breakdown.ReviewCount)
	assert.InDelta(t, 3.5, breakdown.AverageRating, 1e-9)
	assert.InDelta(t, 4.15, breakdown.TimeWeightedRating, 1e-9)
	require.Len(t, breakdown.Bands, 4)
	for _, b := range breakdown.Bands {
		assert.Equal(t, 2, b.Count)
	}
}

func TestProductRating_WeightOverride(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newTestScoringService(t, repo)
	ctx := context.Background()
	repo.On("ListAllByProductID", ctx, "prod-1").Return(bandedReviews(), nil)

	even := scoring.Weights{25, 25, 25, 25}
	breakdown, err := svc.ProductRating(ctx, "prod-1", RatingOptions{Weights: &even})

	require.NoError(t, err)
	assert.InDelta(t, breakdown.AverageRating, breakdown.TimeWeightedRating, 1e-9)
}

func TestProductRating_Errors(t *testing.T) {
	tests := []struct {
		name    string
		reviews []domain.ProductReview
		opts    RatingOptions
		want    error
	}{
		{
			name: "no reviews",
			want: apperrors.ErrUnprocessable,
		},
		{
			name: "all reviews on one day",
			reviews: []domain.ProductReview{
				{ID: "a", Rating: 5, Helpful: "[0, 0]", ReviewedAt: daysBefore(3)},
				{ID: "b", Rating: 4, Helpful: "[0, 0]", ReviewedAt: daysBefore(3)},
			},
			want: apperrors.ErrUnprocessable,
		},
		{
			name: "malformed votes",
			reviews: []domain.ProductReview{
				{ID: "a", Rating: 5, Helpful: "[1]", ReviewedAt: daysBefore(3)},
			},
			want: apperrors.ErrInvalidInput,
		},
		{
			name: "review after reference date",
			reviews: []domain.ProductReview{
				{ID: "a", Rating: 5, Helpful: "[0, 0]", ReviewedAt: refDate.Add(48 * time.Hour)},
			},
			want: apperrors.ErrUnprocessable,
		},
		{
			name:    "weights not summing to 100",
			reviews: bandedReviews(),
			opts:    RatingOptions{Weights: &scoring.Weights{40, 30, 20, 5}},
			want:    apperrors.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockReviewRepository)
			svc := newTestScoringService(t, repo)
			ctx := context.Background()
			repo.On("ListAllByProductID", ctx, "prod-1").Return(tt.reviews, nil)

			breakdown, err := svc.ProductRating(ctx, "prod-1", tt.opts)

			assert.Nil(t, breakdown)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProductRating_StorageError(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newTestScoringService(t, repo)
	ctx := context.Background()
	repo.On("ListAllByProductID", ctx, "prod-1").Return([]domain.ProductReview(nil), errors.New("db down"))

	_, err := svc.ProductRating(ctx, "prod-1", RatingOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestTopReviews(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newTestScoringService(t, repo)
	ctx := context.Background()
	repo.On("ListAllByProductID", ctx, "prod-1").Return(bandedReviews(), nil)

	top, err := svc.TopReviews(ctx, "prod-1", RankOptions{Limit: 3})

	require.NoError(t, err)
	require.Len(t, top, 3)
	// A unanimous [10, 10] beats [30, 40]; a unanimous [2, 2] beats a split [5, 10].
	assert.Equal(t, "b", top[0].ID)
	assert.Equal(t, "h", top[1].ID)
	assert.Equal(t, "f", top[2].ID)
	assert.Equal(t, 30, top[1].HelpfulYes)
	assert.Equal(t, 10, top[1].HelpfulNo)
	assert.Equal(t, 40, top[1].TotalVotes)
	assert.Equal(t, 20, top[1].PositiveNegativeDiff)
	assert.Equal(t, "prod-1", top[1].ProductID)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].WilsonScore, top[i].WilsonScore)
	}
}

func TestTopReviews_DefaultLimitAndConfidence(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newTestScoringService(t, repo)
	ctx := context.Background()
	repo.On("ListAllByProductID", ctx, "prod-1").Return(bandedReviews(), nil)

	top, err := svc.TopReviews(ctx, "prod-1", RankOptions{Confidence: ptr(0.99)})
	require.NoError(t, err)
	assert.Len(t, top, 8)

	_, err = svc.TopReviews(ctx, "prod-1", RankOptions{Confidence: ptr(1.5)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRateRecords_UsesAsOfOverride(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newTestScoringService(t, repo)
	recs := []domain.ReviewRecord{
		{ID: "a", Rating: 5, VoteEncoding: "[0, 0]", ReviewedAt: refDate.AddDate(0, 0, 5)},
	}

	_, err := svc.RateRecords(context.Background(), recs, RatingOptions{})
	assert.ErrorIs(t, err, apperrors.ErrUnprocessable)

	_, err = svc.RateRecords(context.Background(), recs, RatingOptions{AsOf: refDate.AddDate(0, 0, 10)})
	// a single review leaves three bands empty
	assert.ErrorIs(t, err, apperrors.ErrUnprocessable)
	assert.Contains(t, err.Error(), scoring.ErrInsufficientBandData.Error())
}

func TestRankRecords(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newTestScoringService(t, repo)
	recs := []domain.ReviewRecord{
		{ID: "x", Rating: 3, VoteEncoding: "[0, 0]", ReviewedAt: daysBefore(1)},
		{ID: "y", Rating: 4, VoteEncoding: "[9, 10]", ReviewedAt: daysBefore(2)},
	}

	ranked, err := svc.RankRecords(context.Background(), recs, RankOptions{})

	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "y", ranked[0].ID)
	assert.Equal(t, 0.0, ranked[1].WilsonScore)

	_, err = svc.RankRecords(context.Background(), nil, RankOptions{})
	assert.ErrorIs(t, err, apperrors.ErrUnprocessable)
}

func TestWilsonScore(t *testing.T) {
	svc := newTestScoringService(t, new(mockReviewRepository))
	ctx := context.Background()

	zero, err := svc.WilsonScore(ctx, 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero.Score)
	assert.Equal(t, 0.95, zero.Confidence)

	low, err := svc.WilsonScore(ctx, 2, 0, nil)
	require.NoError(t, err)
	high, err := svc.WilsonScore(ctx, 200, 0, nil)
	require.NoError(t, err)
	assert.Greater(t, high.Score, low.Score)
	assert.LessOrEqual(t, high.Score, 1.0)

	strict, err := svc.WilsonScore(ctx, 200, 0, ptr(0.99))
	require.NoError(t, err)
	assert.Equal(t, 0.99, strict.Confidence)
	assert.Less(t, strict.Score, high.Score)

	_, err = svc.WilsonScore(ctx, -1, 1, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestExplicitConfidenceIsValidated(t *testing.T) {
	recs := []domain.ReviewRecord{
		{ID: "x", Rating: 3, VoteEncoding: "[1, 2]", ReviewedAt: daysBefore(1)},
	}

	tests := []struct {
		name       string
		confidence float64
	}{
		{name: "zero", confidence: 0},
		{name: "one", confidence: 1},
		{name: "above one", confidence: 2},
		{name: "negative", confidence: -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockReviewRepository)
			svc := newTestScoringService(t, repo)
			ctx := context.Background()

			_, err := svc.WilsonScore(ctx, 10, 0, ptr(tt.confidence))
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

			_, err = svc.RankRecords(ctx, recs, RankOptions{Confidence: ptr(tt.confidence)})
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

			repo.On("ListAllByProductID", ctx, "prod-1").Return(bandedReviews(), nil)
			_, err = svc.TopReviews(ctx, "prod-1", RankOptions{Confidence: ptr(tt.confidence)})
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestClassify(t *testing.T) {
	reason, err := classify(context.Canceled)
	assert.Equal(t, "canceled", reason)
	assert.ErrorIs(t, err, context.Canceled)

	reason, _ = classify(apperrors.NotFound("review", "r"))
	assert.Equal(t, "storage", reason)

	reason, _ = classify(errors.New("boom"))
	assert.Equal(t, "internal", reason)
}

func TestScoringMetrics(t *testing.T) {
	svc := newTestScoringService(t, new(mockReviewRepository))
	ctx := context.Background()

	failures := scoringFailures.WithLabelValues(opRateRecords, "empty_collection")
	before := testutil.ToFloat64(failures)
	observed := testutil.CollectAndCount(scoringDuration)

	_, err := svc.RateRecords(ctx, nil, RatingOptions{})
	require.ErrorIs(t, err, apperrors.ErrUnprocessable)

	assert.Equal(t, before+1, testutil.ToFloat64(failures))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(scoringDuration), max(observed, 1))
}
