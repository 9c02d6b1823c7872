package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/reviewrank/internal/domain"
	"github.com/utafrali/reviewrank/internal/repository"
	"github.com/utafrali/reviewrank/pkg/database"
	apperrors "github.com/utafrali/reviewrank/pkg/errors"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const reviewColumns = `id, product_id, user_id, reviewer_name, rating, summary, body,
		helpful, reviewed_at, version, created_at, updated_at`

// copyColumns are the product_reviews columns written by CreateBatch.
var copyColumns = []string{
	"id", "product_id", "user_id", "reviewer_name", "rating", "summary", "body",
	"helpful", "reviewed_at", "version", "created_at", "updated_at",
}

// ReviewRepository stores reviews and votes in PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts one review. A duplicate ID is reported as AlreadyExists.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.ProductReview) (err error) {
	query := `
		INSERT INTO product_reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	ctx, end := database.TraceQuery(ctx, "CreateReview", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		review.ID,
		review.ProductID,
		review.UserID,
		review.ReviewerName,
		review.Rating,
		review.Summary,
		review.Body,
		review.Helpful,
		review.ReviewedAt,
		review.Version,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("review", "id", review.ID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// CreateBatch bulk-loads reviews with the COPY protocol.
func (r *ReviewRepository) CreateBatch(ctx context.Context, reviews []domain.ProductReview) (n int64, err error) {
	if len(reviews) == 0 {
		return 0, nil
	}

	ctx, end := database.TraceQuery(ctx, "CreateReviewBatch", "COPY product_reviews")
	defer func() { end(err) }()

	n, err = r.pool.CopyFrom(ctx, pgx.Identifier{"product_reviews"}, copyColumns,
		pgx.CopyFromSlice(len(reviews), func(i int) ([]any, error) {
			rv := reviews[i]
			return []any{
				rv.ID, rv.ProductID, rv.UserID, rv.ReviewerName, rv.Rating, rv.Summary, rv.Body,
				rv.Helpful, rv.ReviewedAt, rv.Version, rv.CreatedAt, rv.UpdatedAt,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy reviews: %w", err)
	}

	return n, nil
}

// GetByID retrieves a single review.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (_ *domain.ProductReview, err error) {
	query := `SELECT ` + reviewColumns + ` FROM product_reviews WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetReview", query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	rv, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	return rv, nil
}

// ListByProductID returns one page of a product's reviews, newest first,
// and the product's total review count.
func (r *ReviewRepository) ListByProductID(ctx context.Context, productID string, page, perPage int) (_ []domain.ProductReview, _ int, err error) {
	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	query := `
		SELECT ` + reviewColumns + `,
		       count(*) OVER() AS total_count
		FROM product_reviews
		WHERE product_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, productID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.ProductReview
		totalCount int
	)

	for rows.Next() {
		var rv domain.ProductReview
		if err := rows.Scan(append(reviewFields(&rv), &totalCount)...); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.ProductReview{}
	}

	return reviews, totalCount, nil
}

// ListAllByProductID returns the full review snapshot of a product in a
// stable order.
func (r *ReviewRepository) ListAllByProductID(ctx context.Context, productID string) (_ []domain.ProductReview, err error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM product_reviews
		WHERE product_id = $1
		ORDER BY reviewed_at DESC, id`

	ctx, end := database.TraceQuery(ctx, "ListAllReviews", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list all reviews: %w", err)
	}

	reviews, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ProductReview, error) {
		var rv domain.ProductReview
		return rv, row.Scan(reviewFields(&rv)...)
	})
	if err != nil {
		return nil, fmt.Errorf("collect review rows: %w", err)
	}
	if reviews == nil {
		reviews = []domain.ProductReview{}
	}

	return reviews, nil
}

// RecordVote inserts the vote row and swaps in the new vote encoding. The
// update only applies while the review is still at expectedVersion.
func (r *ReviewRepository) RecordVote(ctx context.Context, vote domain.VoteInput, newHelpful string, expectedVersion int) (err error) {
	const (
		insertVote = `
		INSERT INTO review_votes (review_id, user_id, helpful)
		VALUES ($1, $2, $3)`
		updateReview = `
		UPDATE product_reviews
		SET helpful = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`
	)

	ctx, end := database.TraceQuery(ctx, "RecordVote", updateReview)
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin vote tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, insertVote, vote.ReviewID, vote.UserID, vote.Helpful); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("vote", "user_id", vote.UserID)
		}
		return fmt.Errorf("insert vote: %w", err)
	}

	ct, err := tx.Exec(ctx, updateReview, newHelpful, vote.ReviewID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update review votes: %w", err)
	}
	if ct.RowsAffected() == 0 {
		err = fmt.Errorf("review %s at version %d: %w", vote.ReviewID, expectedVersion, repository.ErrVersionConflict)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit vote tx: %w", err)
	}

	return nil
}

// DeleteByProductID removes all reviews of a product. Votes go with them
// through the foreign key cascade.
func (r *ReviewRepository) DeleteByProductID(ctx context.Context, productID string) (_ int64, err error) {
	query := `DELETE FROM product_reviews WHERE product_id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteProductReviews", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, productID)
	if err != nil {
		return 0, fmt.Errorf("delete product reviews: %w", err)
	}

	return ct.RowsAffected(), nil
}

func reviewFields(rv *domain.ProductReview) []any {
	return []any{
		&rv.ID,
		&rv.ProductID,
		&rv.UserID,
		&rv.ReviewerName,
		&rv.Rating,
		&rv.Summary,
		&rv.Body,
		&rv.Helpful,
		&rv.ReviewedAt,
		&rv.Version,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	}
}

func scanReview(row pgx.Row) (*domain.ProductReview, error) {
	var rv domain.ProductReview
	if err := row.Scan(reviewFields(&rv)...); err != nil {
		return nil, err
	}
	return &rv, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
