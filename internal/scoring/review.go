package scoring

import (
	"fmt"
	"time"

	"github.com/utafrali/reviewrank/internal/domain"
)

const day = 24 * time.Hour

// DayDiff returns the number of whole days elapsed between reviewedAt and asOf.
func DayDiff(asOf, reviewedAt time.Time) (int, error) {
	elapsed := asOf.Sub(reviewedAt)
	if elapsed < 0 {
		return 0, fmt.Errorf("%w: reviewed at %s, reference %s",
			ErrFutureReview, reviewedAt.Format(time.RFC3339), asOf.Format(time.RFC3339))
	}
	return int(elapsed / day), nil
}

// NewReview decodes and validates a raw record relative to the reference date.
func NewReview(rec domain.ReviewRecord, asOf time.Time) (domain.Review, error) {
	if rec.Rating < 1 || rec.Rating > 5 {
		return domain.Review{}, fmt.Errorf("%w: review %s: rating %d not in [1,5]", ErrInvalidRating, rec.ID, rec.Rating)
	}

	votes, err := DecodeVotes(rec.VoteEncoding)
	if err != nil {
		return domain.Review{}, fmt.Errorf("review %s: %w", rec.ID, err)
	}

	dayDiff, err := DayDiff(asOf, rec.ReviewedAt)
	if err != nil {
		return domain.Review{}, fmt.Errorf("review %s: %w", rec.ID, err)
	}

	return domain.Review{
		ID:         rec.ID,
		Rating:     rec.Rating,
		Votes:      votes,
		ReviewedAt: rec.ReviewedAt,
		DayDiff:    dayDiff,
	}, nil
}

// NewCollection builds reviews for every record, failing on the first invalid one.
func NewCollection(records []domain.ReviewRecord, asOf time.Time) ([]domain.Review, error) {
	reviews := make([]domain.Review, 0, len(records))
	for _, rec := range records {
		r, err := NewReview(rec, asOf)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}
