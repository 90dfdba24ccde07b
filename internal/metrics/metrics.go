// Package metrics exposes the Prometheus instrumentation for the
// clustering pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors updated by the router and scheduler.
type Metrics struct {
	TradesIngested    prometheus.Counter
	ClustersOpened    prometheus.Counter
	ClustersPublished prometheus.Counter
	ClustersDropped   prometheus.Counter
	SpreadsPublished  prometheus.Counter
	EnrichTimeouts    prometheus.Counter
	PublishErrors     prometheus.Counter
}

// New registers the pipeline collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TradesIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "tape_trades_ingested_total",
			Help: "Trades accepted by the clustering router.",
		}),
		ClustersOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "tape_clusters_opened_total",
			Help: "Clusters opened by the registry.",
		}),
		ClustersPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "tape_clusters_published_total",
			Help: "Finalized clusters handed to the publish sinks.",
		}),
		ClustersDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tape_clusters_dropped_total",
			Help: "Clusters discarded below the quantity threshold.",
		}),
		SpreadsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "tape_spreads_published_total",
			Help: "Completed spread bins handed to the publish sinks.",
		}),
		EnrichTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "tape_enrich_failures_total",
			Help: "Enrichment lookups that timed out or failed.",
		}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "tape_publish_errors_total",
			Help: "Publish attempts that failed at a sink.",
		}),
	}
}

// RegisterQueueGauges wires gauges observed from the live pipeline:
// open clusters, open bins, and maturation queue depth.
func RegisterQueueGauges(reg prometheus.Registerer, openClusters, openBins, queueDepth func() float64) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tape_open_clusters",
		Help: "Clusters currently accumulating trades.",
	}, openClusters)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tape_open_spread_bins",
		Help: "Spread bins awaiting leg resolution.",
	}, openBins)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tape_cluster_queue_depth",
		Help: "Clusters waiting in the maturation queue.",
	}, queueDepth)
}
