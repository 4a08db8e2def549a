// Package redpanda publishes finalized interview bundles to Redpanda/Kafka
// for downstream consumers (ATS sync, analytics, archival).
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

// TopicBundles is the Kafka topic finalized bundles are published to.
const TopicBundles = "interview-bundles"

// Producer wraps a Kafka producer and implements domain.BundlePublisher.
// Publishing is best effort at finalize time: the bundle is already durable
// in the database before it reaches the broker.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer constructs a Producer and ensures the bundle topic exists.
func NewProducer(ctx context.Context, brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}

	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer(
			kotel.TracerProvider(otel.GetTracerProvider()),
		)),
	)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.WithHooks(kotelService.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	if err := createTopicIfNotExists(ctx, client, TopicBundles, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", TopicBundles),
			slog.Any("error", err))
	}

	slog.Info("redpanda producer created", slog.Any("brokers", brokers), slog.String("topic", TopicBundles))
	return &Producer{client: client, topic: TopicBundles}, nil
}

// Publish sends the finalized bundle keyed by session ID and returns the
// topic/partition/offset coordinate of the produced record.
func (p *Producer) Publish(ctx domain.Context, b domain.InterviewBundle) (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(b.SessionID),
		Value: raw,
	}
	res := p.client.ProduceSync(ctx, record)
	r, err := res.First()
	if err != nil {
		return "", fmt.Errorf("produce bundle: %w", err)
	}

	coord := fmt.Sprintf("%s/%d/%d", r.Topic, r.Partition, r.Offset)
	slog.Info("bundle published",
		slog.String("session_id", b.SessionID),
		slog.String("record", coord))
	return coord, nil
}

// Close flushes and closes the underlying client.
func (p *Producer) Close() {
	p.client.Close()
}
