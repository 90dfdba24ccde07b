package sink

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Kafka publishes payloads to a topic keyed by ticker, so per-ticker
// ordering survives partitioning at the transport layer.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka builds a writer against the given brokers and topic.
func NewKafka(brokers []string, topic string) *Kafka {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	return &Kafka{writer: w}
}

// Publish writes one message with the ticker as partition key.
func (k *Kafka) Publish(ctx context.Context, key string, payload []byte) error {
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("write to topic %s: %w", k.writer.Topic, err)
	}
	return nil
}

// Close shuts the writer down.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
