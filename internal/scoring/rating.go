package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/utafrali/reviewrank/internal/domain"
)

// weightTolerance bounds the rounding slack allowed when weights are summed.
const weightTolerance = 1e-9

// Weights are the per-band percentages applied from the most recent band to
// the oldest. They must sum to 100.
type Weights [4]float64

// DefaultWeights gives the most recent quarter of reviews half of the rating.
var DefaultWeights = Weights{50, 25, 15, 10}

// Validate checks that every weight is a finite non-negative percentage and
// that the weights sum to 100.
func (w Weights) Validate() error {
	var sum float64
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: weight %d is %v", ErrInvalidWeightConfiguration, i, v)
		}
		sum += v
	}
	if math.Abs(sum-100) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 100", ErrInvalidWeightConfiguration, sum)
	}
	return nil
}

// String renders the weights in the form accepted by ParseWeights.
func (w Weights) String() string {
	parts := make([]string, len(w))
	for i, v := range w {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// ParseWeights parses four comma-separated percentages such as "50,25,15,10".
func ParseWeights(s string) (Weights, error) {
	var w Weights
	parts := strings.Split(s, ",")
	if len(parts) != len(w) {
		return w, fmt.Errorf("%w: expected %d weights, got %d", ErrInvalidWeightConfiguration, len(w), len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return w, fmt.Errorf("%w: weight %d: %q is not a number", ErrInvalidWeightConfiguration, i, p)
		}
		w[i] = v
	}
	if err := w.Validate(); err != nil {
		return w, err
	}
	return w, nil
}

// UnmarshalText parses the comma separated form, so Weights can be read
// straight from configuration.
func (w *Weights) UnmarshalText(b []byte) error {
	parsed, err := ParseWeights(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Aggregator computes a product rating that favours recent reviews.
type Aggregator struct {
	weights Weights
}

// NewAggregator creates an aggregator after validating the weights.
func NewAggregator(w Weights) (*Aggregator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{weights: w}, nil
}

// Weights returns the weight set the aggregator applies.
func (a *Aggregator) Weights() Weights {
	return a.weights
}

// Aggregate bands the reviews by day-diff quartile and combines the per-band
// mean ratings with the configured weights.
func (a *Aggregator) Aggregate(reviews []domain.Review) (*domain.RatingBreakdown, error) {
	if len(reviews) == 0 {
		return nil, ErrEmptyCollection
	}

	dayDiffs := make([]int, len(reviews))
	all := make([]float64, len(reviews))
	for i, r := range reviews {
		dayDiffs[i] = r.DayDiff
		all[i] = float64(r.Rating)
	}
	q := quartiles(dayDiffs)

	ratings := make([][]float64, len(a.weights))
	bands := make([]domain.Band, len(a.weights))
	for i := range bands {
		bands[i] = domain.Band{Index: i, Weight: a.weights[i], MinDayDiff: -1}
	}
	for _, r := range reviews {
		i := bandIndex(float64(r.DayDiff), q)
		ratings[i] = append(ratings[i], float64(r.Rating))
		b := &bands[i]
		if b.MinDayDiff < 0 || r.DayDiff < b.MinDayDiff {
			b.MinDayDiff = r.DayDiff
		}
		if r.DayDiff > b.MaxDayDiff {
			b.MaxDayDiff = r.DayDiff
		}
	}

	var weighted float64
	for i := range bands {
		if len(ratings[i]) == 0 {
			return nil, fmt.Errorf("%w: band %d (%s) has no reviews", ErrInsufficientBandData, i, bandLabel(i, q))
		}
		bands[i].Count = len(ratings[i])
		bands[i].MeanRating = stat.Mean(ratings[i], nil)
		weighted += bands[i].MeanRating * a.weights[i] / 100
	}

	return &domain.RatingBreakdown{
		ReviewCount:        len(reviews),
		AverageRating:      stat.Mean(all, nil),
		TimeWeightedRating: weighted,
		Quartiles:          q[:],
		Bands:              bands,
	}, nil
}

// TimeWeightedRating is a shorthand for NewAggregator(w).Aggregate(reviews).
func TimeWeightedRating(reviews []domain.Review, w Weights) (float64, error) {
	agg, err := NewAggregator(w)
	if err != nil {
		return 0, err
	}
	b, err := agg.Aggregate(reviews)
	if err != nil {
		return 0, err
	}
	return b.TimeWeightedRating, nil
}

func bandIndex(d float64, q [3]float64) int {
	switch {
	case d <= q[0]:
		return 0
	case d <= q[1]:
		return 1
	case d <= q[2]:
		return 2
	default:
		return 3
	}
}

func bandLabel(i int, q [3]float64) string {
	switch i {
	case 0:
		return fmt.Sprintf("day_diff <= %g", q[0])
	case 1:
		return fmt.Sprintf("%g < day_diff <= %g", q[0], q[1])
	case 2:
		return fmt.Sprintf("%g < day_diff <= %g", q[1], q[2])
	default:
		return fmt.Sprintf("day_diff > %g", q[2])
	}
}
