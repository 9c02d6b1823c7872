package scoring

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/reviewrank/internal/domain"
)

// DefaultTopN is the number of reviews shown on a product detail page.
const DefaultTopN = 20

// Ranker scores reviews by Wilson lower bound and selects the most helpful.
type Ranker struct {
	confidence float64
	z          float64
	workers    int
}

// NewRanker creates a ranker for the given confidence level. A non-positive
// worker count uses GOMAXPROCS.
func NewRanker(confidence float64, workers int) (*Ranker, error) {
	if err := ValidateConfidence(confidence); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ranker{
		confidence: confidence,
		z:          zScore(confidence),
		workers:    workers,
	}, nil
}

// Confidence returns the confidence level the ranker scores with.
func (rk *Ranker) Confidence() float64 {
	return rk.confidence
}

// ScoreAll scores every review concurrently. The result keeps input order.
func (rk *Ranker) ScoreAll(ctx context.Context, reviews []domain.Review) ([]domain.ScoredReview, error) {
	scored := make([]domain.ScoredReview, len(reviews))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(rk.workers)
	for i := range reviews {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scored[i] = score(reviews[i], rk.z)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

// Top returns up to n reviews ordered by descending Wilson score. Ties keep
// their input order. A non-positive n selects DefaultTopN.
func (rk *Ranker) Top(ctx context.Context, reviews []domain.Review, n int) ([]domain.ScoredReview, error) {
	if len(reviews) == 0 {
		return nil, ErrEmptyCollection
	}
	if n <= 0 {
		n = DefaultTopN
	}

	scored, err := rk.ScoreAll(ctx, reviews)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].WilsonScore > scored[j].WilsonScore
	})

	if len(scored) > n {
		scored = scored[:n]
	}
	return scored, nil
}
