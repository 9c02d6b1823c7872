package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/reviewrank/internal/domain"
)

// DefaultBatchSize is the number of rows sent per COPY.
const DefaultBatchSize = 500

// BatchWriter bulk-inserts reviews.
type BatchWriter interface {
	CreateBatch(ctx context.Context, reviews []domain.ProductReview) (int64, error)
}

// Load writes reviews in batches of batchSize and returns the number of rows
// written. It stops at the first failing batch.
func Load(ctx context.Context, w BatchWriter, reviews []domain.ProductReview, batchSize int, logger *slog.Logger) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var total int64
	for start := 0; start < len(reviews); start += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := min(start+batchSize, len(reviews))

		n, err := w.CreateBatch(ctx, reviews[start:end])
		if err != nil {
			return total, fmt.Errorf("load rows %d-%d: %w", start+1, end, err)
		}
		total += n

		logger.InfoContext(ctx, "review batch loaded",
			slog.Int("from", start+1),
			slog.Int("to", end),
			slog.Int64("total", total),
		)
	}
	return total, nil
}
