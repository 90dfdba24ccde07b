package clusters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"main/internal/domain/entity/tape"
	"main/internal/metrics"
	"main/internal/symbols"
)

// Publisher forwards a finalized payload downstream. Implementations
// live in internal/infrastructure/sink.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Enricher resolves open interest and volume for a symbol at a trade's
// date. Unresolved figures come back as -1.
type Enricher interface {
	Enrich(ctx context.Context, symbol string, tradeTime int64) (openInterest, volume int64, err error)
}

// Config carries the maturation and publication tunables.
type Config struct {
	// WaitTime is the quietness window: a cluster matures once the gap
	// between the newest queued activity and its first trade exceeds it.
	WaitTime time.Duration
	// Timeout forces maturity by wall-clock age regardless of quietness.
	Timeout time.Duration
	// QuantityThreshold is the minimum net quantity a cluster must
	// reach to be reportable.
	QuantityThreshold int64
	// EnrichTimeout bounds the enrichment lookup.
	EnrichTimeout time.Duration
	// PollInterval is the yield between scheduler iterations.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.WaitTime <= 0 {
		c.WaitTime = 400 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.QuantityThreshold <= 0 {
		c.QuantityThreshold = 100
	}
	if c.EnrichTimeout <= 0 {
		c.EnrichTimeout = 500 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	return c
}

// FinalizeError reports a fault while finalizing one cluster, with
// enough context to diagnose it from the logs. The scheduler drops the
// cluster and keeps running.
type FinalizeError struct {
	Symbol   string
	Sequence int64
	Time     int64
	Err      error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("finalize cluster %s seq=%d time=%d: %v", e.Symbol, e.Sequence, e.Time, e.Err)
}

func (e *FinalizeError) Unwrap() error { return e.Err }

// Scheduler drains the maturation queue with a single worker, deciding
// per cluster whether it has matured and finalizing it exactly once.
type Scheduler struct {
	registry  *Registry
	tracker   *SpreadTracker
	queue     *clusterQueue
	publisher Publisher
	enricher  Enricher
	cfg       Config
	log       *logrus.Entry
	metrics   *metrics.Metrics
}

// NewScheduler assembles a scheduler over the shared registry and
// spread tracker. The enricher may be nil when no enrichment store is
// configured.
func NewScheduler(registry *Registry, tracker *SpreadTracker, publisher Publisher, enricher Enricher, cfg Config, logger *logrus.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		registry:  registry,
		tracker:   tracker,
		queue:     newClusterQueue(),
		publisher: publisher,
		enricher:  enricher,
		cfg:       cfg.withDefaults(),
		log:       logger.WithField("component", "scheduler"),
		metrics:   m,
	}
}

// Enqueue registers a newly opened cluster with the maturation queue.
// Each cluster is enqueued exactly once, at creation.
func (s *Scheduler) Enqueue(c *Cluster) {
	s.queue.Put(c)
}

// QueueDepth is the number of clusters awaiting maturity.
func (s *Scheduler) QueueDepth() int {
	return s.queue.Len()
}

// Run drives the maturation loop until the context is cancelled. A
// fault while finalizing a single cluster is logged and isolated; the
// loop itself never dies on one.
func (s *Scheduler) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.queue.Close()
	}()
	for {
		c, ok := s.queue.Take()
		if !ok {
			return ctx.Err()
		}
		if s.mature(c) {
			if c.MarkProcessed() {
				if err := s.finalize(ctx, c); err != nil {
					s.logFinalizeError(err)
				}
			}
		} else {
			s.queue.Put(c)
		}
		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// mature applies the two maturity rules: the quietness heuristic
// against the newest queued activity, and the hard wall-clock timeout.
// Whichever fires first wins.
func (s *Scheduler) mature(c *Cluster) bool {
	if time.Since(c.CreationTime) > s.cfg.Timeout {
		return true
	}
	first := c.FirstTrade()
	if first == nil {
		// emptied by cancellations; finalize discovers and drops it
		return true
	}
	// with nothing else queued there is no later activity to compare
	// against, so quietness is measured against the wall clock
	latest := time.Now().UnixMilli()
	if last := s.queue.Last(); last != nil {
		if lt := last.LastTrade(); lt != nil {
			latest = lt.Time
		}
	}
	return latest-first.Time > s.cfg.WaitTime.Milliseconds()
}

func (s *Scheduler) finalize(ctx context.Context, c *Cluster) error {
	s.registry.Remove(c.Key())
	first := c.FirstTrade()
	if first == nil {
		return &FinalizeError{Symbol: c.Key(), Err: ErrEmptyCluster}
	}
	ticker := symbols.Ticker(first.Symbol)

	if c.Quantity() >= s.cfg.QuantityThreshold {
		if err := c.Classify(); err != nil {
			return s.faultErr(first, err)
		}
		s.enrich(ctx, c, first)
		if c.IsSpreadLeg {
			return s.resolveSpreadLeg(ctx, c, first, ticker, true)
		}
		payload, err := c.Serialize()
		if err != nil {
			return s.faultErr(first, err)
		}
		s.publish(ctx, ticker, payload)
		s.metrics.ClustersPublished.Inc()
		return nil
	}
	if c.IsSpreadLeg {
		// a disqualified leg still has to be accounted for in its bin
		return s.resolveSpreadLeg(ctx, c, first, ticker, false)
	}
	s.metrics.ClustersDropped.Inc()
	return nil
}

func (s *Scheduler) resolveSpreadLeg(ctx context.Context, c *Cluster, first *tape.Trade, ticker string, qualified bool) error {
	bin := c.SpreadBin()
	if bin == nil {
		return s.faultErr(first, errors.New("spread leg has no bin"))
	}
	complete, aggregate, err := bin.ResolveLeg(c, qualified)
	if complete {
		s.tracker.Remove(ticker, bin)
	}
	if err != nil {
		return s.faultErr(first, err)
	}
	if complete && aggregate != nil {
		s.publish(ctx, ticker, aggregate)
		s.metrics.SpreadsPublished.Inc()
	}
	return nil
}

func (s *Scheduler) enrich(ctx context.Context, c *Cluster, first *tape.Trade) {
	if s.enricher == nil {
		return
	}
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.EnrichTimeout)
	defer cancel()
	openInterest, volume, err := s.enricher.Enrich(lookupCtx, first.Symbol, first.Time)
	if err != nil {
		s.metrics.EnrichTimeouts.Inc()
		s.log.WithError(err).WithField("symbol", first.Symbol).Warn("enrichment lookup failed")
		return
	}
	c.SetEnrichment(openInterest, volume)
}

func (s *Scheduler) publish(ctx context.Context, key string, payload []byte) {
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.metrics.PublishErrors.Inc()
		s.log.WithError(err).WithField("key", key).Error("publish failed, payload lost")
	}
}

func (s *Scheduler) faultErr(first *tape.Trade, err error) error {
	return &FinalizeError{
		Symbol:   first.Symbol,
		Sequence: first.Sequence,
		Time:     first.Time,
		Err:      err,
	}
}

func (s *Scheduler) logFinalizeError(err error) {
	var fe *FinalizeError
	if errors.As(err, &fe) {
		s.log.WithFields(logrus.Fields{
			"symbol":   fe.Symbol,
			"sequence": fe.Sequence,
			"time":     fe.Time,
		}).WithError(fe.Err).Warn("cluster dropped at finalize")
		return
	}
	s.log.WithError(err).Warn("cluster dropped at finalize")
}
