package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"main/internal/clusters"
	"main/internal/config"
	"main/internal/infrastructure/enrich"
	"main/internal/infrastructure/sink"
	"main/internal/infrastructure/source"
	infrahttp "main/internal/interfaces/http"
	"main/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// run owns the deferred closes, so sinks shut down on every
	// termination path; Fatalf here would skip them
	if err := run(ctx, logger); err != nil {
		logger.Errorf("clusterd stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Info("clusterd stopped")
}

func run(ctx context.Context, logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	fanout, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init sinks: %w", err)
	}
	defer func() {
		if closeErr := fanout.Close(); closeErr != nil {
			logger.Errorf("close sinks: %v", closeErr)
		}
	}()

	var enricher clusters.Enricher
	if cfg.Redis.CacheAddr != "" {
		cache := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.CacheAddr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to enrichment redis: %w", err)
		}
		store := enrich.NewStore(cache)
		defer store.Close()
		enricher = store
	}

	registry := clusters.NewRegistry()
	tracker := clusters.NewSpreadTracker()
	sched := clusters.NewScheduler(registry, tracker, fanout, enricher, clusters.Config{
		WaitTime:          cfg.Cluster.WaitTime,
		Timeout:           cfg.Cluster.Timeout,
		QuantityThreshold: cfg.Cluster.QuantityThreshold,
		EnrichTimeout:     cfg.Cluster.EnrichTimeout,
		PollInterval:      cfg.Cluster.PollInterval,
	}, logger, m)
	router := clusters.NewRouter(registry, tracker, sched, logger, m)

	metrics.RegisterQueueGauges(promReg,
		func() float64 { return float64(registry.Len()) },
		func() float64 { return float64(tracker.OpenBins()) },
		func() float64 { return float64(sched.QueueDepth()) },
	)

	src, err := buildSource(cfg, router.HandleTrade, logger)
	if err != nil {
		return fmt.Errorf("init trade source: %w", err)
	}

	handler := infrahttp.NewHandler(pipelineStats{
		registry: registry,
		tracker:  tracker,
		sched:    sched,
	}, promReg)
	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return src.Run(gctx)
	})
	g.Go(func() error {
		logger.Infof("status server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.WithFields(logrus.Fields{
		"source":  cfg.Source.Kind,
		"channel": cfg.Channel(),
		"env":     cfg.Env,
	}).Info("clusterd started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildSinks(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*sink.Fanout, error) {
	var sinks []sink.Sink

	if cfg.Redis.PubSubAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.PubSubAddr,
			Password: cfg.Redis.Password,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to pubsub redis: %w", err)
		}
		sinks = append(sinks, sink.NewPubSub(client, cfg.Channel()))
	}
	if cfg.Sinks.KafkaTopic {
		sinks = append(sinks, sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.ClustersTopic))
	}
	if cfg.Sinks.ClusterFile != "" {
		fileSink, err := sink.NewFile(cfg.Sinks.ClusterFile)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fileSink)
	}
	if cfg.Sinks.ArchiveDSN != "" {
		archive, err := sink.NewArchive(ctx, cfg.Sinks.ArchiveDSN)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, archive)
	}
	if len(sinks) == 0 {
		return nil, errors.New("no publish sinks configured")
	}
	return sink.NewFanout(logger, sinks...), nil
}

func buildSource(cfg *config.Config, handler source.Handler, logger *logrus.Logger) (source.Source, error) {
	switch cfg.Source.Kind {
	case "kafka":
		return source.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.TradesTopic, cfg.Kafka.GroupID, handler, logger), nil
	case "amqp":
		if cfg.AMQP.URL == "" {
			return nil, errors.New("RABBITMQ_URL is required for the amqp source")
		}
		return source.NewAMQP(cfg.AMQP.URL, cfg.AMQP.TradesExchange, handler, logger), nil
	case "file":
		if cfg.Source.File == "" {
			return nil, errors.New("TRADE_FILE is required for the file source")
		}
		return source.NewReplay(cfg.Source.File, cfg.Source.Batch, handler, logger), nil
	case "stdin":
		return source.NewStdin(os.Stdin, handler, logger), nil
	case "ws":
		if cfg.Source.WSURL == "" {
			return nil, errors.New("FEED_WS_URL is required for the ws source")
		}
		return source.NewWebSocket(cfg.Source.WSURL, handler, logger), nil
	default:
		return nil, fmt.Errorf("unsupported trade source: %s", cfg.Source.Kind)
	}
}

type pipelineStats struct {
	registry *clusters.Registry
	tracker  *clusters.SpreadTracker
	sched    *clusters.Scheduler
}

func (p pipelineStats) Stats() infrahttp.Stats {
	return infrahttp.Stats{
		OpenClusters: p.registry.Len(),
		OpenBins:     p.tracker.OpenBins(),
		QueueDepth:   p.sched.QueueDepth(),
	}
}
