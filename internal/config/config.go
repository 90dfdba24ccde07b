package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnv               = "development"
	defaultHTTPHost          = "0.0.0.0"
	defaultHTTPPort          = 8080
	defaultWaitTimeMS        = 400
	defaultClusterTimeoutMS  = 2000
	defaultQuantityThreshold = 100
	defaultMoneyThreshold    = 50000
	defaultEnrichTimeoutMS   = 500
	defaultPollIntervalMS    = 10
	defaultKafkaBrokers      = "localhost:9092"
	defaultTradesTopic       = "timeandsales"
	defaultClustersTopic     = "clusters"
	defaultConsumerGroup     = "clusterd"
	defaultTradesExchange    = "tape.trades"
	defaultSource            = "kafka"
)

// Config keeps the runtime configuration for the clustering service.
type Config struct {
	Env     string
	HTTP    HTTPConfig
	Cluster ClusterConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	AMQP    AMQPConfig
	Source  SourceConfig
	Sinks   SinkConfig
}

// HTTPConfig holds the status endpoint settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// ClusterConfig carries the maturation and threshold tunables.
type ClusterConfig struct {
	WaitTime          time.Duration
	Timeout           time.Duration
	QuantityThreshold int64
	// MoneyThreshold is reserved; classification does not use it yet.
	MoneyThreshold int64
	EnrichTimeout  time.Duration
	PollInterval   time.Duration
}

// RedisConfig stores connection parameters for the enrichment cache
// and the pub/sub instance. These are separate servers in production.
type RedisConfig struct {
	CacheAddr  string
	PubSubAddr string
	Password   string
	DB         int
}

// KafkaConfig stores broker addresses and topic names.
type KafkaConfig struct {
	Brokers       []string
	TradesTopic   string
	ClustersTopic string
	GroupID       string
}

// AMQPConfig stores the RabbitMQ trade-ingest settings.
type AMQPConfig struct {
	URL            string
	TradesExchange string
}

// SourceConfig selects and parameterizes the trade source.
type SourceConfig struct {
	// Kind is one of kafka, amqp, file, stdin, ws.
	Kind  string
	File  string
	Batch bool
	WSURL string
}

// SinkConfig enables the publish sinks.
type SinkConfig struct {
	ClusterFile string
	ArchiveDSN  string
	KafkaTopic  bool
}

// Channel is the pub/sub channel name; the development environment
// publishes to its own channel so production consumers never see
// replayed data.
func (c *Config) Channel() string {
	if c.Env == "" || c.Env == "development" {
		return "dev_rawClusters"
	}
	return "rawClusters"
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	port, err := getInt("HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return nil, fmt.Errorf("parse HTTP_PORT: %w", err)
	}
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}

	waitTime, err := getMillis("WAIT_TIME_MS", defaultWaitTimeMS)
	if err != nil {
		return nil, err
	}
	timeout, err := getMillis("CLUSTER_TIMEOUT_MS", defaultClusterTimeoutMS)
	if err != nil {
		return nil, err
	}
	enrichTimeout, err := getMillis("ENRICH_TIMEOUT_MS", defaultEnrichTimeoutMS)
	if err != nil {
		return nil, err
	}
	pollInterval, err := getMillis("POLL_INTERVAL_MS", defaultPollIntervalMS)
	if err != nil {
		return nil, err
	}
	quantityThreshold, err := getInt("QUANTITY_THRESHOLD", defaultQuantityThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse QUANTITY_THRESHOLD: %w", err)
	}
	moneyThreshold, err := getInt("MONEY_THRESHOLD", defaultMoneyThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse MONEY_THRESHOLD: %w", err)
	}

	return &Config{
		Env: getString("NODE_ENV", defaultEnv),
		HTTP: HTTPConfig{
			Host: getString("HTTP_HOST", defaultHTTPHost),
			Port: port,
		},
		Cluster: ClusterConfig{
			WaitTime:          waitTime,
			Timeout:           timeout,
			QuantityThreshold: int64(quantityThreshold),
			MoneyThreshold:    int64(moneyThreshold),
			EnrichTimeout:     enrichTimeout,
			PollInterval:      pollInterval,
		},
		Redis: RedisConfig{
			CacheAddr:  os.Getenv("REDIS_ADDR"),
			PubSubAddr: os.Getenv("REDIS_PUBSUB_ADDR"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getString("KAFKA_BROKERS", defaultKafkaBrokers)),
			TradesTopic:   getString("KAFKA_TRADES_TOPIC", defaultTradesTopic),
			ClustersTopic: getString("KAFKA_CLUSTERS_TOPIC", defaultClustersTopic),
			GroupID:       getString("KAFKA_GROUP_ID", defaultConsumerGroup),
		},
		AMQP: AMQPConfig{
			URL:            os.Getenv("RABBITMQ_URL"),
			TradesExchange: getString("RABBITMQ_TRADES_EXCHANGE", defaultTradesExchange),
		},
		Source: SourceConfig{
			Kind:  getString("TRADE_SOURCE", defaultSource),
			File:  os.Getenv("TRADE_FILE"),
			Batch: getBool("TRADE_FILE_BATCH", false),
			WSURL: os.Getenv("FEED_WS_URL"),
		},
		Sinks: SinkConfig{
			ClusterFile: os.Getenv("CLUSTER_FILE"),
			ArchiveDSN:  os.Getenv("ARCHIVE_DSN"),
			KafkaTopic:  getBool("SINK_KAFKA", false),
		},
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getMillis(key string, fallback int) (time.Duration, error) {
	value, err := getInt(key, fallback)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return time.Duration(value) * time.Millisecond, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
