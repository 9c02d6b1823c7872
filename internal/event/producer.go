package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/reviewrank/internal/domain"
	pkgkafka "github.com/utafrali/reviewrank/pkg/kafka"
	pkglogger "github.com/utafrali/reviewrank/pkg/logger"
)

// Kafka topic constants for review domain events.
const (
	TopicReviewCreated = "ecommerce.review.created"
	TopicReviewVoted   = "ecommerce.review.voted"
)

// Aggregate type constant.
const AggregateTypeReview = "review"

// Source identifier for events originating from the review service.
const SourceReviewService = "review-service"

// ReviewCreatedData is the payload for a review.created event.
type ReviewCreatedData struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	Rating    int    `json:"rating"`
}

// ReviewVotedData is the payload for a review.voted event. Helpful carries
// the review's vote encoding after the vote was applied.
type ReviewVotedData struct {
	ReviewID  string `json:"review_id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	Vote      bool   `json:"vote"`
	Helpful   string `json:"helpful"`
}

// Publisher is the subset of *pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the review service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.ProductReview) error {
	data := ReviewCreatedData{
		ID:        review.ID,
		ProductID: review.ProductID,
		UserID:    review.UserID,
		Rating:    review.Rating,
	}

	event, err := pkgkafka.NewEvent(TopicReviewCreated, review.ID, AggregateTypeReview, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create review.created event: %w", err)
	}
	event.WithCorrelationID(pkglogger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicReviewCreated, event); err != nil {
		return fmt.Errorf("publish review.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.created event",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
	)

	return nil
}

// PublishReviewVoted publishes a review.voted event.
func (p *Producer) PublishReviewVoted(ctx context.Context, review *domain.ProductReview, vote domain.VoteInput) error {
	data := ReviewVotedData{
		ReviewID:  review.ID,
		ProductID: review.ProductID,
		UserID:    vote.UserID,
		Vote:      vote.Helpful,
		Helpful:   review.Helpful,
	}

	event, err := pkgkafka.NewEvent(TopicReviewVoted, review.ID, AggregateTypeReview, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create review.voted event: %w", err)
	}
	event.WithCorrelationID(pkglogger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicReviewVoted, event); err != nil {
		return fmt.Errorf("publish review.voted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.voted event",
		slog.String("review_id", review.ID),
		slog.String("helpful", review.Helpful),
	)

	return nil
}
