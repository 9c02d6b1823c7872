package repository

import (
	"context"
	"errors"

	"github.com/utafrali/reviewrank/internal/domain"
)

// ErrVersionConflict reports that a review changed between read and write.
var ErrVersionConflict = errors.New("review version conflict")

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// Create inserts a new review.
	Create(ctx context.Context, review *domain.ProductReview) error

	// CreateBatch bulk-loads reviews and returns how many rows were written.
	CreateBatch(ctx context.Context, reviews []domain.ProductReview) (int64, error)

	// GetByID retrieves a review by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.ProductReview, error)

	// ListByProductID returns one page of a product's reviews, newest first,
	// along with the total count.
	ListByProductID(ctx context.Context, productID string, page, perPage int) ([]domain.ProductReview, int, error)

	// ListAllByProductID returns every review of a product.
	ListAllByProductID(ctx context.Context, productID string) ([]domain.ProductReview, error)

	// RecordVote stores the vote and the review's new vote encoding in one
	// transaction, provided the review is still at expectedVersion.
	RecordVote(ctx context.Context, vote domain.VoteInput, newHelpful string, expectedVersion int) error

	// DeleteByProductID removes every review of a product and returns how many were removed.
	DeleteByProductID(ctx context.Context, productID string) (int64, error)
}
