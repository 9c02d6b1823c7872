package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scoring operation label values.
const (
	opProductRating = "product_rating"
	opTopReviews    = "top_reviews"
	opRateRecords   = "rate_records"
	opRankRecords   = "rank_records"
	opWilson        = "wilson"
)

var (
	scoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_scoring_duration_seconds",
			Help:    "Duration of review scoring operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	scoringFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_scoring_failures_total",
			Help: "Total number of failed review scoring operations",
		},
		[]string{"operation", "reason"},
	)

	scoringCollectionSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_scoring_collection_size",
			Help:    "Number of reviews in a scored collection",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"operation"},
	)
)
