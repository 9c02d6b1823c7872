package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/reviewrank/internal/domain"
	pkgkafka "github.com/utafrali/reviewrank/pkg/kafka"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	return m.Called(ctx, topic, event).Error(0)
}

type mockPurger struct{ mock.Mock }

func (m *mockPurger) DeleteProductReviews(ctx context.Context, productID string) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

func TestProducer_PublishReviewCreated(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, testLogger())
	review := &domain.ProductReview{ID: "r-1", ProductID: "p-1", UserID: "u-1", Rating: 4}

	pub.On("Publish", mock.Anything, TopicReviewCreated, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data ReviewCreatedData
		return e.EventType == TopicReviewCreated &&
			e.AggregateID == "r-1" &&
			e.Source == SourceReviewService &&
			e.UnmarshalData(&data) == nil &&
			data == ReviewCreatedData{ID: "r-1", ProductID: "p-1", UserID: "u-1", Rating: 4}
	})).Return(nil)

	require.NoError(t, p.PublishReviewCreated(context.Background(), review))
	pub.AssertExpectations(t)
}

func TestProducer_PublishReviewVoted(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, testLogger())
	review := &domain.ProductReview{ID: "r-1", ProductID: "p-1", Helpful: "[4, 6]"}

	pub.On("Publish", mock.Anything, TopicReviewVoted, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data ReviewVotedData
		return e.UnmarshalData(&data) == nil && data.Helpful == "[4, 6]" && data.Vote && data.UserID == "u-9"
	})).Return(nil)

	err := p.PublishReviewVoted(context.Background(), review, domain.VoteInput{ReviewID: "r-1", UserID: "u-9", Helpful: true})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestProducer_PublishError(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, testLogger())
	pub.On("Publish", mock.Anything, TopicReviewCreated, mock.Anything).Return(errors.New("broker down"))

	err := p.PublishReviewCreated(context.Background(), &domain.ProductReview{ID: "r-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish review.created event")
}

func productDeleted(t *testing.T, id string) *pkgkafka.Event {
	t.Helper()
	e, err := pkgkafka.NewEvent(TopicProductDeleted, id, "product", "product-service", ProductDeletedData{ID: id})
	require.NoError(t, err)
	return e
}

func TestConsumer_ProductDeleted(t *testing.T) {
	purger := new(mockPurger)
	c := NewConsumer(purger, testLogger())
	purger.On("DeleteProductReviews", mock.Anything, "p-1").Return(int64(12), nil)

	require.NoError(t, c.Handle(context.Background(), productDeleted(t, "p-1")))
	purger.AssertExpectations(t)
}

func TestConsumer_ProductDeleted_FallsBackToAggregateID(t *testing.T) {
	purger := new(mockPurger)
	c := NewConsumer(purger, testLogger())
	e := productDeleted(t, "p-2")
	e.Data = []byte(`{}`)
	purger.On("DeleteProductReviews", mock.Anything, "p-2").Return(int64(0), nil)

	require.NoError(t, c.Handle(context.Background(), e))
	purger.AssertExpectations(t)
}

func TestConsumer_ProductDeleted_Errors(t *testing.T) {
	purger := new(mockPurger)
	c := NewConsumer(purger, testLogger())

	bad := productDeleted(t, "p-3")
	bad.Data = []byte(`not json`)
	assert.Error(t, c.Handle(context.Background(), bad))

	purger.On("DeleteProductReviews", mock.Anything, "p-4").Return(int64(0), errors.New("db down"))
	err := c.Handle(context.Background(), productDeleted(t, "p-4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p-4")
}

func TestConsumer_UnknownEventIgnored(t *testing.T) {
	purger := new(mockPurger)
	c := NewConsumer(purger, testLogger())

	err := c.Handle(context.Background(), &pkgkafka.Event{EventType: "ecommerce.product.updated"})

	assert.NoError(t, err)
	purger.AssertNotCalled(t, "DeleteProductReviews", mock.Anything, mock.Anything)
}
