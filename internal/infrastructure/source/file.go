package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"main/internal/domain/entity/tape"
)

// Replay reads newline-delimited trade JSON from a capture file. In
// paced mode it sleeps the recorded inter-trade gaps to approximate the
// original arrival rhythm; batch mode replays as fast as possible.
type Replay struct {
	path    string
	batch   bool
	handler Handler
	log     *logrus.Entry
}

// NewReplay builds a file source.
func NewReplay(path string, batch bool, handler Handler, logger *logrus.Logger) *Replay {
	return &Replay{
		path:    path,
		batch:   batch,
		handler: handler,
		log:     logger.WithField("component", "replay_source"),
	}
}

// Run streams the file through the handler. Undecodable lines are
// logged and skipped.
func (r *Replay) Run(ctx context.Context) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()
	return r.pump(ctx, f)
}

func (r *Replay) pump(ctx context.Context, reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var prev *tape.Trade
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		t, err := tape.Unmarshal(line)
		if err != nil {
			r.log.WithError(err).Warn("skip undecodable trade line")
			continue
		}
		if !r.batch && prev != nil && t.Time > prev.Time {
			gap := time.Duration(t.Time-prev.Time) * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gap):
			}
		}
		r.handler(t)
		prev = t
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read replay file: %w", err)
	}
	return nil
}

// Stdin reads newline-delimited trade JSON from standard input until
// EOF or a literal "quit" line.
type Stdin struct {
	reader  io.Reader
	handler Handler
	log     *logrus.Entry
}

// NewStdin builds a standard-input source. The reader parameter exists
// for tests; pass os.Stdin in production.
func NewStdin(reader io.Reader, handler Handler, logger *logrus.Logger) *Stdin {
	return &Stdin{
		reader:  reader,
		handler: handler,
		log:     logger.WithField("component", "stdin_source"),
	}
}

// Run streams lines through the handler.
func (s *Stdin) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line == "quit" {
			return nil
		}
		t, err := tape.Unmarshal([]byte(line))
		if err != nil {
			s.log.WithError(err).Warn("skip undecodable trade line")
			continue
		}
		s.handler(t)
	}
	return scanner.Err()
}
