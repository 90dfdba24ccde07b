package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"main/internal/config"
	"main/internal/domain/entity/tape"
	"main/internal/infrastructure/source"
	"main/internal/symbols"
)

const (
	correctionLogPath = "correction_trades.log"
	recordFlushEvery  = 200
)

func main() {
	var (
		file           = flag.String("file", "", "replay trades from a newline-delimited JSON file")
		useStdin       = flag.Bool("stdin", false, "read trades from stdin")
		wsURL          = flag.String("ws", "", "stream trades from a websocket endpoint")
		batch          = flag.Bool("batch", false, "replay a file as fast as possible instead of pacing by timestamps")
		outfile        = flag.String("outfile", "", "append every normalized trade to this file")
		useCurrentTime = flag.Bool("use_current_time", false, "stamp trades with the wall clock instead of the feed timestamp")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.TradesTopic,
		Balancer: &kafka.Hash{},
	})
	defer writer.Close()

	f, err := newFeed(ctx, writer, *outfile, *useCurrentTime, logger)
	if err != nil {
		logger.Fatalf("failed to init feed: %v", err)
	}
	defer f.Close()

	var src source.Source
	switch {
	case *file != "":
		src = source.NewReplay(*file, *batch, f.Handle, logger)
	case *useStdin:
		src = source.NewStdin(os.Stdin, f.Handle, logger)
	case *wsURL != "":
		src = source.NewWebSocket(*wsURL, f.Handle, logger)
	default:
		logger.Fatal("one of -file, -stdin or -ws is required")
	}

	logger.WithField("topic", cfg.Kafka.TradesTopic).Info("feed started")
	if err := src.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("feed stopped with error: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"published": f.Published(),
		"skipped":   f.Skipped(),
	}).Info("feed stopped")
}

// tradeWriter is the slice of kafka.Writer the feed publishes through.
type tradeWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// feed normalizes incoming trades, keeps the raw-trade and correction
// logs, and forwards market-hours trades to the raw trades topic keyed
// by underlying ticker.
type feed struct {
	ctx            context.Context
	writer         tradeWriter
	logger         *logrus.Entry
	useCurrentTime bool

	mu          sync.Mutex
	record      *bufio.Writer
	recordFile  *os.File
	corrections *bufio.Writer
	corrFile    *os.File
	recorded    int
	published   int64
	skipped     int64
}

func newFeed(ctx context.Context, writer tradeWriter, outfile string, useCurrentTime bool, logger *logrus.Logger) (*feed, error) {
	f := &feed{
		ctx:            ctx,
		writer:         writer,
		logger:         logger.WithField("component", "feed"),
		useCurrentTime: useCurrentTime,
	}

	corrFile, err := os.OpenFile(correctionLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open correction log: %w", err)
	}
	f.corrFile = corrFile
	f.corrections = bufio.NewWriter(corrFile)

	if outfile != "" {
		recordFile, err := os.OpenFile(outfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			corrFile.Close()
			return nil, fmt.Errorf("open trade outfile: %w", err)
		}
		f.recordFile = recordFile
		f.record = bufio.NewWriter(recordFile)
	}
	return f, nil
}

// Handle is the per-trade hook wired into the chosen source.
func (f *feed) Handle(t *tape.Trade) {
	t.Symbol = symbols.NormalizeContract(t.Symbol)
	if f.useCurrentTime {
		t.Time = time.Now().UnixMilli()
	}

	line, err := tape.Marshal(t)
	if err != nil {
		f.logger.Warnf("drop unserializable trade: %v", err)
		return
	}

	if t.IsCancel || t.IsCorrection {
		f.logCorrection(line)
	}
	f.logRecord(line)

	// current-time stamping exists for off-hours replays, where the
	// hours filter would otherwise drop every trade
	ticker := symbols.Ticker(t.Symbol)
	duringHours := f.useCurrentTime || symbols.DuringMarketHours(t.Time)
	if !duringHours || symbols.IsMiniContract(ticker) {
		f.mu.Lock()
		f.skipped++
		f.mu.Unlock()
		return
	}

	err = f.writer.WriteMessages(f.ctx, kafka.Message{
		Key:   []byte(ticker),
		Value: line,
	})
	if err != nil {
		f.logger.WithFields(logrus.Fields{
			"symbol":   t.Symbol,
			"sequence": t.Sequence,
		}).Errorf("publish trade: %v", err)
		return
	}
	f.mu.Lock()
	f.published++
	f.mu.Unlock()
}

func (f *feed) logCorrection(line []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corrections.Write(line)
	f.corrections.WriteByte('\n')
	f.corrections.Flush()
}

func (f *feed) logRecord(line []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record == nil {
		return
	}
	f.record.Write(line)
	f.record.WriteByte('\n')
	f.recorded++
	if f.recorded%recordFlushEvery == 0 {
		f.record.Flush()
	}
}

func (f *feed) Published() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published
}

func (f *feed) Skipped() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skipped
}

func (f *feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	if f.record != nil {
		errs = append(errs, f.record.Flush(), f.recordFile.Close())
	}
	errs = append(errs, f.corrections.Flush(), f.corrFile.Close())
	return errors.Join(errs...)
}
