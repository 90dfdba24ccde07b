package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/domain/entity/tape"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type collector struct {
	mu     sync.Mutex
	trades []*tape.Trade
}

func (c *collector) handle(t *tape.Trade) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trades = append(c.trades, t)
}

func (c *collector) symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.trades))
	for _, t := range c.trades {
		out = append(out, t.Symbol)
	}
	return out
}

func TestReplayBatchMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.log")
	lines := []string{
		`{"symbol":"AAPL150117C100","sequence":1,"price":1.05,"size":50,"bid":0.9,"ask":1.1,"time":1421244000000}`,
		`not json`,
		`{"symbol":"AAPL150117C100","sequence":2,"price":1.06,"size":60,"bid":0.9,"ask":1.1,"time":1421244000100}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	c := &collector{}
	r := NewReplay(path, true, c.handle, discardLogger())
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []string{"AAPL150117C100", "AAPL150117C100"}, c.symbols())
}

func TestReplayMissingFile(t *testing.T) {
	r := NewReplay(filepath.Join(t.TempDir(), "absent.log"), true, func(*tape.Trade) {}, discardLogger())
	assert.Error(t, r.Run(context.Background()))
}

func TestStdinStopsOnQuit(t *testing.T) {
	input := strings.Join([]string{
		`{"symbol":"AAPL150117C100","sequence":1,"price":1.05,"size":50,"bid":0.9,"ask":1.1,"time":1421244000000}`,
		`quit`,
		`{"symbol":"SPY150117C200","sequence":2,"price":1.05,"size":50,"bid":0.9,"ask":1.1,"time":1421244000000}`,
	}, "\n")

	c := &collector{}
	s := NewStdin(strings.NewReader(input), c.handle, discardLogger())
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []string{"AAPL150117C100"}, c.symbols())
}
