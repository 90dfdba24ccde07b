package clusters

import (
	"github.com/sirupsen/logrus"

	"main/internal/domain/entity/tape"
	"main/internal/metrics"
	"main/internal/symbols"
)

// Router is the producer path: it merges incoming trades into the open
// cluster for their dispatch key, opening and enqueueing a new cluster
// when none exists, and attaches new spread-leg clusters to their bin.
type Router struct {
	registry *Registry
	tracker  *SpreadTracker
	sched    *Scheduler
	log      *logrus.Entry
	metrics  *metrics.Metrics
}

// NewRouter wires the ingest path over the shared registry, spread
// tracker, and scheduler.
func NewRouter(registry *Registry, tracker *SpreadTracker, sched *Scheduler, logger *logrus.Logger, m *metrics.Metrics) *Router {
	return &Router{
		registry: registry,
		tracker:  tracker,
		sched:    sched,
		log:      logger.WithField("component", "router"),
		metrics:  m,
	}
}

// HandleTrade routes one normalized trade event. Cancellations and
// corrections are applied to the open cluster by sequence match; an
// unmatched reference is logged and skipped.
func (r *Router) HandleTrade(t *tape.Trade) {
	r.metrics.TradesIngested.Inc()
	key := DispatchKey(t)

	switch {
	case t.IsCancel:
		if !r.applyToOpen(key, t, (*Cluster).CancelTrade) {
			r.log.WithFields(logrus.Fields{
				"symbol":   t.Symbol,
				"sequence": t.Sequence,
			}).Warn("cancel did not match an open trade")
		}
	case t.IsCorrection:
		if !r.applyToOpen(key, t, (*Cluster).CorrectTrade) {
			r.log.WithFields(logrus.Fields{
				"symbol":   t.Symbol,
				"sequence": t.Sequence,
			}).Warn("correction did not match an open trade")
		}
	default:
		c, created := r.registry.LookupOrCreate(t)
		if !created {
			c.AddTrade(t)
			return
		}
		r.metrics.ClustersOpened.Inc()
		if c.IsSpreadLeg {
			bin := r.tracker.Bin(symbols.Ticker(t.Symbol))
			bin.AddLeg(c)
			c.AttachBin(bin)
		}
		r.sched.Enqueue(c)
	}
}

func (r *Router) applyToOpen(key string, t *tape.Trade, apply func(*Cluster, *tape.Trade) bool) bool {
	c, ok := r.registry.Lookup(key)
	if !ok {
		return false
	}
	return apply(c, t)
}
