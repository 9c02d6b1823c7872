package domain

import (
	"time"
)

// Votes holds the decoded helpfulness tally of a single review.
type Votes struct {
	HelpfulYes int `json:"helpful_yes"`
	TotalVotes int `json:"total_votes"`
}

// HelpfulNo returns the number of voters who found the review unhelpful.
func (v Votes) HelpfulNo() int {
	return v.TotalVotes - v.HelpfulYes
}

// ReviewRecord is the raw shape handed to the scoring core by an ingestion
// collaborator. VoteEncoding has the form "[helpfulYes, totalVotes]".
type ReviewRecord struct {
	ID           string    `json:"id"`
	Rating       int       `json:"rating"`
	VoteEncoding string    `json:"helpful"`
	ReviewedAt   time.Time `json:"reviewed_at"`
}

// Review is a decoded, validated review ready for scoring.
type Review struct {
	ID         string    `json:"id"`
	Rating     int       `json:"rating"`
	Votes      Votes     `json:"votes"`
	ReviewedAt time.Time `json:"reviewed_at"`
	DayDiff    int       `json:"day_diff"`
}

// ScoredReview is a Review with its helpfulness scores attached.
type ScoredReview struct {
	Review
	HelpfulYes           int     `json:"helpful_yes"`
	HelpfulNo            int     `json:"helpful_no"`
	PositiveNegativeDiff int     `json:"positive_negative_diff"`
	AverageRatio         float64 `json:"average_ratio"`
	WilsonScore          float64 `json:"wilson_score"`
}

// Band summarises one recency band of a time-weighted rating.
type Band struct {
	Index      int     `json:"index"`
	MinDayDiff int     `json:"min_day_diff"`
	MaxDayDiff int     `json:"max_day_diff"`
	Count      int     `json:"count"`
	MeanRating float64 `json:"mean_rating"`
	Weight     float64 `json:"weight"`
}

// RatingBreakdown is the result of a time-weighted rating pass.
type RatingBreakdown struct {
	ReviewCount        int       `json:"review_count"`
	AverageRating      float64   `json:"average_rating"`
	TimeWeightedRating float64   `json:"time_weighted_rating"`
	Quartiles          []float64 `json:"quartiles"`
	Bands              []Band    `json:"bands"`
}

// ProductReview is a review as stored by the review service.
type ProductReview struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	UserID       string    `json:"user_id"`
	ReviewerName string    `json:"reviewer_name"`
	Rating       int       `json:"rating"`
	Summary      string    `json:"summary"`
	Body         string    `json:"body"`
	Helpful      string    `json:"helpful"`
	ReviewedAt   time.Time `json:"reviewed_at"`
	Version      int       `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Record returns the scoring input view of the stored review.
func (r *ProductReview) Record() ReviewRecord {
	return ReviewRecord{
		ID:           r.ID,
		Rating:       r.Rating,
		VoteEncoding: r.Helpful,
		ReviewedAt:   r.ReviewedAt,
	}
}

// RankedReview pairs a stored review with its computed scores.
type RankedReview struct {
	ProductReview
	HelpfulYes           int     `json:"helpful_yes"`
	HelpfulNo            int     `json:"helpful_no"`
	TotalVotes           int     `json:"total_votes"`
	PositiveNegativeDiff int     `json:"positive_negative_diff"`
	AverageRatio         float64 `json:"average_ratio"`
	WilsonScore          float64 `json:"wilson_score"`
}

// VoteInput is a single helpfulness vote cast on a review.
type VoteInput struct {
	ReviewID string
	UserID   string
	Helpful  bool
}
