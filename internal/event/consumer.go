package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/reviewrank/pkg/kafka"
)

// TopicProductDeleted is published by the product service.
const TopicProductDeleted = "ecommerce.product.deleted"

// ProductDeletedData represents the payload from a product.deleted event.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// ReviewPurger removes every review of a product.
type ReviewPurger interface {
	DeleteProductReviews(ctx context.Context, productID string) (int64, error)
}

// Consumer handles catalog events that affect stored reviews.
type Consumer struct {
	reviews ReviewPurger
	logger  *slog.Logger
}

// NewConsumer creates a new event consumer for the review service.
func NewConsumer(reviews ReviewPurger, logger *slog.Logger) *Consumer {
	return &Consumer{
		reviews: reviews,
		logger:  logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductDeleted:
		return c.handleProductDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handleProductDeleted drops the reviews of a product removed from the catalog.
func (c *Consumer) handleProductDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductDeletedData
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.ID == "" {
		data.ID = event.AggregateID
	}
	if data.ID == "" {
		return fmt.Errorf("product.deleted event %s carries no product id", event.EventID)
	}

	n, err := c.reviews.DeleteProductReviews(ctx, data.ID)
	if err != nil {
		return fmt.Errorf("delete reviews of product %s: %w", data.ID, err)
	}

	c.logger.InfoContext(ctx, "removed reviews of deleted product",
		slog.String("product_id", data.ID),
		slog.Int64("removed", n),
	)
	return nil
}
