package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/reviewrank/internal/domain"
	"github.com/utafrali/reviewrank/internal/repository"
	"github.com/utafrali/reviewrank/internal/scoring"
	apperrors "github.com/utafrali/reviewrank/pkg/errors"
	"github.com/utafrali/reviewrank/pkg/pagination"
)

// maxVoteAttempts bounds the optimistic retries of a single vote.
const maxVoteAttempts = 3

// ProductChecker reports whether a product exists in the catalog.
type ProductChecker interface {
	Exists(ctx context.Context, productID string) (bool, error)
}

// EventPublisher publishes review domain events.
type EventPublisher interface {
	PublishReviewCreated(ctx context.Context, review *domain.ProductReview) error
	PublishReviewVoted(ctx context.Context, review *domain.ProductReview, vote domain.VoteInput) error
}

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	ProductID    string
	UserID       string
	ReviewerName string
	Rating       int
	Summary      string
	Body         string
}

// ReviewService implements the business logic for storing reviews and votes.
type ReviewService struct {
	repo     repository.ReviewRepository
	products ProductChecker
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(repo repository.ReviewRepository, products ProductChecker, events EventPublisher, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		repo:     repo,
		products: products,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateReview stores a new review for an existing product. New reviews
// start with no votes.
func (s *ReviewService) CreateReview(ctx context.Context, input *CreateReviewInput) (*domain.ProductReview, error) {
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product_id is required")
	}
	if input.UserID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.InvalidInput("rating must be between 1 and 5")
	}

	exists, err := s.products.Exists(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("check product %s: %w", input.ProductID, err)
	}
	if !exists {
		return nil, apperrors.NotFound("product", input.ProductID)
	}

	now := s.now().UTC()
	review := &domain.ProductReview{
		ID:           uuid.New().String(),
		ProductID:    input.ProductID,
		UserID:       input.UserID,
		ReviewerName: input.ReviewerName,
		Rating:       input.Rating,
		Summary:      input.Summary,
		Body:         input.Body,
		Helpful:      scoring.EncodeVotes(domain.Votes{}),
		ReviewedAt:   now,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
		slog.String("user_id", review.UserID),
		slog.Int("rating", review.Rating),
	)

	if err := s.events.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	return review, nil
}

// ListReviews returns one page of a product's reviews, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, productID string, params pagination.Params) (pagination.Result[domain.ProductReview], error) {
	params = pagination.New(params.Page, params.PerPage)

	reviews, total, err := s.repo.ListByProductID(ctx, productID, params.Page, params.PerPage)
	if err != nil {
		return pagination.Result[domain.ProductReview]{}, fmt.Errorf("list reviews: %w", err)
	}

	return pagination.NewResult(reviews, total, params), nil
}

// Vote records one helpfulness vote on a review of the given product and
// returns the review with its updated vote encoding. A user may vote on a
// review only once. Concurrent votes on the same review are retried.
func (s *ReviewService) Vote(ctx context.Context, productID string, vote domain.VoteInput) (*domain.ProductReview, error) {
	if vote.UserID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}

	var lastErr error
	for attempt := 1; attempt <= maxVoteAttempts; attempt++ {
		review, err := s.applyVote(ctx, productID, vote)
		if err == nil {
			s.logger.InfoContext(ctx, "review vote recorded",
				slog.String("review_id", review.ID),
				slog.String("user_id", vote.UserID),
				slog.Bool("helpful", vote.Helpful),
				slog.String("votes", review.Helpful),
			)
			if err := s.events.PublishReviewVoted(ctx, review, vote); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish review.voted event",
					slog.String("review_id", review.ID),
					slog.String("error", err.Error()),
				)
			}
			return review, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		s.logger.WarnContext(ctx, "review changed during vote, retrying",
			slog.String("review_id", vote.ReviewID),
			slog.Int("attempt", attempt),
		)
	}

	return nil, apperrors.Conflict(fmt.Sprintf("review %s is receiving too many concurrent votes: %v", vote.ReviewID, lastErr))
}

func (s *ReviewService) applyVote(ctx context.Context, productID string, vote domain.VoteInput) (*domain.ProductReview, error) {
	review, err := s.repo.GetByID(ctx, vote.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	if review.ProductID != productID {
		return nil, apperrors.NotFound("review", vote.ReviewID)
	}

	votes, err := scoring.DecodeVotes(review.Helpful)
	if err != nil {
		return nil, apperrors.Unprocessable(fmt.Sprintf("review %s has unusable votes: %v", review.ID, err))
	}

	votes.TotalVotes++
	if vote.Helpful {
		votes.HelpfulYes++
	}
	encoded := scoring.EncodeVotes(votes)

	if err := s.repo.RecordVote(ctx, vote, encoded, review.Version); err != nil {
		return nil, fmt.Errorf("record vote: %w", err)
	}

	review.Helpful = encoded
	review.Version++
	review.UpdatedAt = s.now().UTC()
	return review, nil
}

// DeleteProductReviews removes every review of a product. It is called when
// the catalog deletes the product.
func (s *ReviewService) DeleteProductReviews(ctx context.Context, productID string) (int64, error) {
	n, err := s.repo.DeleteByProductID(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("delete reviews of product %s: %w", productID, err)
	}
	return n, nil
}
