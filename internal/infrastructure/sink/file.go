package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
)

// File appends newline-delimited JSON payloads to a log file. The
// writer is shared, so writes are serialized and flushed per line to
// keep the file free of interleaved partial records.
type File struct {
	mu  sync.Mutex
	f   *os.File
	buf *bufio.Writer
}

// NewFile opens (or creates) the cluster log file for appending.
func NewFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open cluster file %s: %w", path, err)
	}
	return &File{f: f, buf: bufio.NewWriter(f)}, nil
}

// Publish writes the payload as one line and flushes.
func (s *File) Publish(_ context.Context, _ string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.buf.Write(payload); err != nil {
		return fmt.Errorf("write cluster file: %w", err)
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("write cluster file: %w", err)
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("flush cluster file: %w", err)
	}
	return nil
}

// Close flushes pending data and closes the file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flushErr := s.buf.Flush()
	if err := s.f.Close(); err != nil {
		return err
	}
	return flushErr
}
