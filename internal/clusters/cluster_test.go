package clusters

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/domain/entity/tape"
)

func makeTrade(symbol string, seq, size int64, price, bid, ask float64) *tape.Trade {
	return &tape.Trade{
		Symbol:   symbol,
		Sequence: seq,
		Size:     size,
		Price:    price,
		Bid:      bid,
		Ask:      ask,
		Time:     1421244000000 + seq,
		Exchange: "C",
	}
}

func sumSizes(c *Cluster) int64 {
	var total int64
	for _, t := range c.Trades() {
		total += t.Size
	}
	return total
}

func TestAddTradeKeepsSequenceOrder(t *testing.T) {
	c := NewCluster(makeTrade("AAPL150117C100", 5, 10, 1.0, 0.9, 1.1))
	for _, seq := range []int64{3, 9, 1, 7, 2} {
		c.AddTrade(makeTrade("AAPL150117C100", seq, 10, 1.0, 0.9, 1.1))
	}

	trades := c.Trades()
	require.Len(t, trades, 6)
	for i := 1; i < len(trades); i++ {
		assert.Less(t, trades[i-1].Sequence, trades[i].Sequence)
	}
}

func TestAddTradeIgnoresNonPositiveSize(t *testing.T) {
	c := NewCluster(makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1))
	c.AddTrade(makeTrade("AAPL150117C100", 2, 0, 1.0, 0.9, 1.1))
	c.AddTrade(makeTrade("AAPL150117C100", 3, -5, 1.0, 0.9, 1.1))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(10), c.Quantity())
}

func TestAddTradeAssignsAggressorSide(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		want  tape.Side
	}{
		{"at the bid", 0.90, tape.SideSell},
		{"at the ask", 1.10, tape.SideBuy},
		{"at the midpoint", 1.00, tape.SideUndefined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := makeTrade("AAPL150117C100", 1, 10, tt.price, 0.90, 1.10)
			NewCluster(tr)
			assert.Equal(t, tt.want, tr.Side)
		})
	}
}

func TestQuantityMatchesTradeSum(t *testing.T) {
	c := NewCluster(makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1))
	c.AddTrade(makeTrade("AAPL150117C100", 2, 25, 1.05, 0.9, 1.1))
	c.AddTrade(makeTrade("AAPL150117C100", 3, 40, 1.10, 0.9, 1.1))

	require.True(t, c.CancelTrade(makeTrade("AAPL150117C100", 2, 25, 1.05, 0.9, 1.1)))
	require.True(t, c.CorrectTrade(makeTrade("AAPL150117C100", 3, 15, 1.20, 0.9, 1.1)))

	assert.Equal(t, sumSizes(c), c.Quantity())
	assert.Equal(t, int64(25), c.Quantity())

	var money float64
	for _, tr := range c.Trades() {
		money += tr.Notional()
	}
	assert.InDelta(t, money, c.Money(), 1e-6)
}

func TestCancelTradeNotFound(t *testing.T) {
	c := NewCluster(makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1))
	qty, money := c.Quantity(), c.Money()

	assert.False(t, c.CancelTrade(makeTrade("AAPL150117C100", 99, 10, 1.0, 0.9, 1.1)))
	assert.Equal(t, qty, c.Quantity())
	assert.Equal(t, money, c.Money())
	assert.Equal(t, 1, c.Len())
}

func TestCorrectTradeNotFound(t *testing.T) {
	c := NewCluster(makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1))
	assert.False(t, c.CorrectTrade(makeTrade("AAPL150117C100", 99, 20, 2.0, 0.9, 1.1)))
	assert.Equal(t, int64(10), c.Quantity())
}

func TestCancelAllTradesLeavesEmptyCluster(t *testing.T) {
	first := makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1)
	c := NewCluster(first)
	require.True(t, c.CancelTrade(first))

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Quantity())
	assert.Equal(t, "AAPL150117C100", c.Key())
	assert.ErrorIs(t, c.Classify(), ErrEmptyCluster)
}

func TestClassifyPriceTieBreak(t *testing.T) {
	// bid, ask, and price all pinned at 100, then price alone moves up:
	// the price tie-break resolves to a buyer.
	c := NewCluster(makeTrade("AAPL150117C100", 1, 50, 100, 100, 100))
	c.AddTrade(makeTrade("AAPL150117C100", 2, 50, 100, 100, 100))
	c.AddTrade(makeTrade("AAPL150117C100", 3, 50, 101, 100, 100))

	require.NoError(t, c.Classify())
	assert.Equal(t, tape.SideBuy, c.Classification())
}

func TestClassifyMidpointMoveWins(t *testing.T) {
	// first trade is seller-initiated, the later disagreeing trade sees
	// the midpoint up by more than the tolerance: net buy regardless of
	// the individual sides.
	c := NewCluster(makeTrade("AAPL150117C100", 1, 50, 99.96, 99.95, 100.05))
	require.Equal(t, tape.SideSell, c.FirstTrade().Side)
	c.AddTrade(makeTrade("AAPL150117C100", 2, 50, 100.05, 99.96, 100.06))

	require.NoError(t, c.Classify())
	assert.Equal(t, tape.SideBuy, c.Classification())
}

func TestClassifyMidpointMoveDownWins(t *testing.T) {
	c := NewCluster(makeTrade("AAPL150117C100", 1, 50, 100.04, 99.95, 100.05))
	require.Equal(t, tape.SideBuy, c.FirstTrade().Side)
	c.AddTrade(makeTrade("AAPL150117C100", 2, 50, 99.86, 99.85, 99.95))

	require.NoError(t, c.Classify())
	assert.Equal(t, tape.SideSell, c.Classification())
}

func TestClassifyBidAskMoveBreaksMidpointTie(t *testing.T) {
	// midpoint is unchanged but the bid ticked up while the ask ticked
	// down: the quote-move rule classifies a buy.
	c := NewCluster(makeTrade("AAPL150117C100", 1, 50, 99.91, 99.90, 100.10))
	require.Equal(t, tape.SideSell, c.FirstTrade().Side)
	c.AddTrade(makeTrade("AAPL150117C100", 2, 50, 100.04, 99.95, 100.05))

	require.NoError(t, c.Classify())
	assert.Equal(t, tape.SideBuy, c.Classification())
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewCluster(makeTrade("AAPL150117C100", 1, 50, 99.96, 99.95, 100.05))
	c.AddTrade(makeTrade("AAPL150117C100", 2, 50, 100.05, 99.96, 100.06))
	c.AddTrade(makeTrade("AAPL150117C100", 3, 50, 99.97, 99.95, 100.05))

	require.NoError(t, c.Classify())
	want := c.Classification()
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Classify())
		assert.Equal(t, want, c.Classification())
	}
}

func TestMarkProcessedTransitionsOnce(t *testing.T) {
	c := NewCluster(makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1))

	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.MarkProcessed() {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transitions)
	assert.True(t, c.Processed())
}

func TestDispatchKeySpreadSuffix(t *testing.T) {
	plain := makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1)
	leg := makeTrade("AAPL150117C100", 2, 10, 1.0, 0.9, 1.1)
	leg.IsSpreadLeg = true

	assert.Equal(t, "AAPL150117C100", DispatchKey(plain))
	assert.Equal(t, "AAPL150117C100:spread", DispatchKey(leg))
}
