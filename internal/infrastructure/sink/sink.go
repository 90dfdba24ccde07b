// Package sink implements the publish fan-out: redis pub/sub, a Kafka
// topic partitioned by ticker, an append-only NDJSON file, and a
// postgres archive. Delivery is best-effort at-most-once; a failing
// sink is logged and never blocks the scheduler.
package sink

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Sink accepts one serialized cluster or bin payload keyed by ticker.
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Fanout forwards every payload to each configured sink. A per-sink
// failure is logged and does not stop delivery to the remaining sinks.
type Fanout struct {
	sinks []Sink
	log   *logrus.Entry
}

// NewFanout builds a fan-out over the given sinks.
func NewFanout(logger *logrus.Logger, sinks ...Sink) *Fanout {
	return &Fanout{
		sinks: sinks,
		log:   logger.WithField("component", "sink_fanout"),
	}
}

// Publish delivers the payload to every sink. It never returns an
// error: sink failures are isolated per publish and surfaced in logs.
func (f *Fanout) Publish(ctx context.Context, key string, payload []byte) error {
	for _, s := range f.sinks {
		if err := s.Publish(ctx, key, payload); err != nil {
			f.log.WithError(err).WithField("key", key).Warn("sink publish failed")
		}
	}
	return nil
}

// Close releases every sink, joining their errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
