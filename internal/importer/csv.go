// Package importer bulk-loads review exports into the review store and
// prints offline rating reports for them.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/reviewrank/internal/domain"
	"github.com/utafrali/reviewrank/internal/scoring"
)

// Column names of the review export.
const (
	colReviewerID   = "reviewerID"
	colASIN         = "asin"
	colReviewerName = "reviewerName"
	colHelpful      = "helpful"
	colReviewText   = "reviewText"
	colOverall      = "overall"
	colSummary      = "summary"
	colUnixTime     = "unixReviewTime"
)

var requiredColumns = []string{colReviewerID, colASIN, colHelpful, colOverall, colUnixTime}

// reviewNamespace seeds the deterministic review IDs so a re-import of the
// same export produces the same rows.
var reviewNamespace = uuid.MustParse("9c1b7f0e-5d2a-4f43-8a1e-6b0f3c2d7e91")

// ErrMissingColumn reports an export without one of the required columns.
var ErrMissingColumn = errors.New("missing required column")

// RowError describes a row that could not be converted.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// ParseResult holds the converted reviews and the rows that were skipped.
type ParseResult struct {
	Reviews []domain.ProductReview
	Skipped []RowError
}

// Parse reads a review export with a header row. Invalid rows are skipped
// and reported, unless strict is set, in which case the first one aborts.
func Parse(r io.Reader, strict bool, now time.Time) (*ParseResult, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	res := &ParseResult{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("read review export: %w", err)
			}
			rowErr := RowError{Line: pe.StartLine, Err: pe.Err}
			if strict {
				return nil, rowErr
			}
			res.Skipped = append(res.Skipped, rowErr)
			continue
		}

		line, _ := cr.FieldPos(0)
		review, err := convert(rec, idx, now)
		if err != nil {
			rowErr := RowError{Line: line, Err: err}
			if strict {
				return nil, rowErr
			}
			res.Skipped = append(res.Skipped, rowErr)
			continue
		}
		res.Reviews = append(res.Reviews, review)
	}
	return res, nil
}

func convert(rec []string, idx map[string]int, now time.Time) (domain.ProductReview, error) {
	field := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	productID := field(colASIN)
	userID := field(colReviewerID)
	if productID == "" || userID == "" {
		return domain.ProductReview{}, fmt.Errorf("%s and %s are required", colASIN, colReviewerID)
	}

	rating, err := parseRating(field(colOverall))
	if err != nil {
		return domain.ProductReview{}, err
	}

	helpful := field(colHelpful)
	if _, err := scoring.DecodeVotes(helpful); err != nil {
		return domain.ProductReview{}, err
	}

	unix, err := strconv.ParseInt(field(colUnixTime), 10, 64)
	if err != nil {
		return domain.ProductReview{}, fmt.Errorf("%s: %w", colUnixTime, err)
	}

	return domain.ProductReview{
		ID:           uuid.NewSHA1(reviewNamespace, []byte(productID+"/"+userID)).String(),
		ProductID:    productID,
		UserID:       userID,
		ReviewerName: field(colReviewerName),
		Rating:       rating,
		Summary:      field(colSummary),
		Body:         field(colReviewText),
		Helpful:      helpful,
		ReviewedAt:   time.Unix(unix, 0).UTC(),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// parseRating accepts whole star ratings written either as "4" or "4.0".
func parseRating(s string) (int, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", scoring.ErrInvalidRating, colOverall, s)
	}
	if f != math.Trunc(f) || f < 1 || f > 5 {
		return 0, fmt.Errorf("%w: %s %q not a whole number in [1,5]", scoring.ErrInvalidRating, colOverall, s)
	}
	return int(f), nil
}
