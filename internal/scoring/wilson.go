package scoring

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/utafrali/reviewrank/internal/domain"
)

// DefaultConfidence is the two-sided confidence level used for ranking.
const DefaultConfidence = 0.95

// ValidateConfidence reports whether c is a usable two-sided confidence level.
func ValidateConfidence(c float64) error {
	if math.IsNaN(c) || c <= 0 || c >= 1 {
		return fmt.Errorf("%w: %v not in (0,1)", ErrInvalidConfidenceLevel, c)
	}
	return nil
}

// zScore returns the standard normal quantile for a two-sided confidence level.
func zScore(confidence float64) float64 {
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
}

// WilsonLowerBound returns the lower bound of the Wilson score interval for
// up positive and down negative votes. A review without votes scores 0.
func WilsonLowerBound(up, down int, confidence float64) (float64, error) {
	if err := ValidateConfidence(confidence); err != nil {
		return 0, err
	}
	if up < 0 || down < 0 {
		return 0, fmt.Errorf("%w: up=%d down=%d", ErrNegativeVotes, up, down)
	}
	return wilson(up, down, zScore(confidence)), nil
}

func wilson(up, down int, z float64) float64 {
	// No positive votes bounds the proportion at exactly 0.
	if up == 0 {
		return 0
	}
	n := float64(up + down)
	phat := float64(up) / n
	z2 := z * z
	lb := (phat + z2/(2*n) - z*math.Sqrt((phat*(1-phat)+z2/(4*n))/n)) / (1 + z2/n)
	// Round-off can push the bound a hair outside [0,1].
	return math.Min(math.Max(lb, 0), 1)
}

// UpDownDiff is the net tally of helpful minus unhelpful votes.
func UpDownDiff(up, down int) int {
	return up - down
}

// AverageRatio is the share of helpful votes, or 0 without votes.
func AverageRatio(up, down int) float64 {
	if up+down == 0 {
		return 0
	}
	return float64(up) / float64(up+down)
}

// Score attaches every helpfulness score to r.
func Score(r domain.Review, confidence float64) (domain.ScoredReview, error) {
	if err := ValidateConfidence(confidence); err != nil {
		return domain.ScoredReview{}, err
	}
	return score(r, zScore(confidence)), nil
}

func score(r domain.Review, z float64) domain.ScoredReview {
	up, down := r.Votes.HelpfulYes, r.Votes.HelpfulNo()
	return domain.ScoredReview{
		Review:               r,
		HelpfulYes:           up,
		HelpfulNo:            down,
		PositiveNegativeDiff: UpDownDiff(up, down),
		AverageRatio:         AverageRatio(up, down),
		WilsonScore:          wilson(up, down, z),
	}
}
