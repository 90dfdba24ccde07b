package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"main/internal/domain/entity/tape"
)

// Kafka consumes the normalized trade topic the feed adapter publishes
// to. Messages are keyed by ticker, so per-ticker order is preserved
// across partitions.
type Kafka struct {
	reader  *kafka.Reader
	handler Handler
	log     *logrus.Entry
}

// NewKafka builds a reader for the trades topic.
func NewKafka(brokers []string, topic, groupID string, handler Handler, logger *logrus.Logger) *Kafka {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Kafka{
		reader:  r,
		handler: handler,
		log:     logger.WithField("component", "kafka_source"),
	}
}

// Run consumes until the context is cancelled.
func (k *Kafka) Run(ctx context.Context) error {
	defer k.reader.Close()
	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return ctx.Err()
			}
			return fmt.Errorf("read trades topic: %w", err)
		}
		t, err := tape.Unmarshal(msg.Value)
		if err != nil {
			k.log.WithError(err).Warn("skip undecodable trade message")
			continue
		}
		k.handler(t)
	}
}
