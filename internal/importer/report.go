package importer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/utafrali/reviewrank/internal/domain"
	"github.com/utafrali/reviewrank/internal/scoring"
)

// ReportOptions control the offline rating report.
type ReportOptions struct {
	AsOf       time.Time
	Weights    scoring.Weights
	Confidence float64
	TopN       int
	Workers    int
}

// Report prints the plain mean, the time-weighted rating with its recency
// bands and the most helpful reviews of the given collection.
func Report(ctx context.Context, w io.Writer, reviews []domain.ProductReview, opts ReportOptions) error {
	recs := make([]domain.ReviewRecord, len(reviews))
	byID := make(map[string]*domain.ProductReview, len(reviews))
	for i := range reviews {
		recs[i] = reviews[i].Record()
		byID[reviews[i].ID] = &reviews[i]
	}

	collection, err := scoring.NewCollection(recs, opts.AsOf)
	if err != nil {
		return fmt.Errorf("build review collection: %w", err)
	}

	aggregator, err := scoring.NewAggregator(opts.Weights)
	if err != nil {
		return err
	}
	breakdown, err := aggregator.Aggregate(collection)
	if err != nil {
		return fmt.Errorf("time-weighted rating: %w", err)
	}

	ranker, err := scoring.NewRanker(opts.Confidence, opts.Workers)
	if err != nil {
		return err
	}
	top, err := ranker.Top(ctx, collection, opts.TopN)
	if err != nil {
		return fmt.Errorf("rank reviews: %w", err)
	}

	fmt.Fprintf(w, "Reviews:              %d\n", breakdown.ReviewCount)
	fmt.Fprintf(w, "Reference date:       %s\n", opts.AsOf.Format(time.DateOnly))
	fmt.Fprintf(w, "Average rating:       %.5f\n", breakdown.AverageRating)
	fmt.Fprintf(w, "Time-weighted rating: %.5f  (weights %s)\n", breakdown.TimeWeightedRating, aggregator.Weights())
	fmt.Fprintf(w, "Day-diff quartiles:   %.1f / %.1f / %.1f\n\n",
		breakdown.Quartiles[0], breakdown.Quartiles[1], breakdown.Quartiles[2])

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "band\tdays\treviews\tmean\tweight\t")
	for _, b := range breakdown.Bands {
		fmt.Fprintf(tw, "%d\t%d-%d\t%d\t%.5f\t%.0f%%\t\n", b.Index+1, b.MinDayDiff, b.MaxDayDiff, b.Count, b.MeanRating, b.Weight)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTop %d reviews by Wilson lower bound (confidence %.2f)\n", len(top), ranker.Confidence())
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\treviewer\trating\tyes\tno\tdiff\tavg\twilson\tsummary")
	for i, sr := range top {
		pr := byID[sr.ID]
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%.5f\t%.5f\t%s\n",
			i+1, clip(pr.ReviewerName, 24), sr.Rating, sr.HelpfulYes, sr.HelpfulNo,
			sr.PositiveNegativeDiff, sr.AverageRatio, sr.WilsonScore, clip(pr.Summary, 48))
	}
	return tw.Flush()
}

func clip(s string, n int) string {
	s = strings.ReplaceAll(s, "\t", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
