package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var consumerLabels = []string{"topic", "consumer_group"}

var (
	consumerReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_received_total",
		Help: "Messages fetched from the broker",
	}, consumerLabels)

	consumerProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_processed_total",
		Help: "Messages handled successfully",
	}, consumerLabels)

	consumerFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_failed_total",
		Help: "Messages that were undecodable or exhausted their retries",
	}, consumerLabels)

	consumerDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_duplicate_total",
		Help: "Messages skipped because their event ID was already processed",
	}, []string{"event_type", "consumer_group"})

	consumerDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_dlq_published_total",
		Help: "Messages parked on a dead-letter topic",
	}, consumerLabels)

	consumerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_consumer_processing_duration_seconds",
		Help:    "Handler time per message including retries",
		Buckets: prometheus.DefBuckets,
	}, consumerLabels)

	producerPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_messages_published_total",
		Help: "Events written to the broker",
	}, []string{"topic"})

	producerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_publish_errors_total",
		Help: "Failed event writes",
	}, []string{"topic"})

	producerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_producer_publish_duration_seconds",
		Help:    "Time spent writing one event",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)

// consumerMetrics binds the consumer series to one topic and group.
type consumerMetrics struct {
	received     prometheus.Counter
	processed    prometheus.Counter
	failed       prometheus.Counter
	deadLettered prometheus.Counter
	duration     prometheus.Observer
}

func newConsumerMetrics(topic, group string) consumerMetrics {
	return consumerMetrics{
		received:     consumerReceived.WithLabelValues(topic, group),
		processed:    consumerProcessed.WithLabelValues(topic, group),
		failed:       consumerFailed.WithLabelValues(topic, group),
		deadLettered: consumerDeadLettered.WithLabelValues(topic, group),
		duration:     consumerDuration.WithLabelValues(topic, group),
	}
}
