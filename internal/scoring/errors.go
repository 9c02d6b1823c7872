// Package scoring implements the review scoring core: vote decoding,
// time-weighted product ratings and Wilson lower bound helpfulness ranking.
// Every function in this package is pure and safe for concurrent use.
package scoring

import "errors"

var (
	ErrMalformedVoteEncoding      = errors.New("malformed vote encoding")
	ErrInsufficientBandData       = errors.New("insufficient band data")
	ErrInvalidWeightConfiguration = errors.New("invalid weight configuration")
	ErrInvalidConfidenceLevel     = errors.New("invalid confidence level")
	ErrEmptyCollection            = errors.New("empty review collection")
	ErrInvalidRating              = errors.New("invalid rating")
	ErrFutureReview               = errors.New("review timestamp after reference date")
	ErrNegativeVotes              = errors.New("negative vote count")
)
