// Package clusters implements the aggregation core: clusters of
// temporally adjacent executions, the spread-leg bins coordinating
// multi-leg orders, the registry of open clusters, and the maturation
// scheduler that finalizes and publishes them exactly once.
package clusters

import (
	"errors"
	"sync"
	"time"

	"main/internal/domain/entity/tape"
)

// sideEpsilon is the price distance below which bid/ask proximity is
// treated as a tie and the aggressor side stays undefined. The same
// tolerance bounds midpoint moves during classification.
const sideEpsilon = 0.001

// ErrEmptyCluster reports a cluster whose trades were all cancelled
// before finalization reached it.
var ErrEmptyCluster = errors.New("cluster has no trades")

// Cluster accumulates the ordered run of trades for one symbol within
// one maturation window. All state is guarded by the embedded mutex;
// mutation happens only through the methods below.
type Cluster struct {
	mu     sync.Mutex
	trades []*tape.Trade // ascending by sequence

	quantity       int64
	money          float64
	classification tape.Side
	openInterest   int64
	volume         int64

	// key, IsSpreadLeg, and CreationTime are fixed at construction.
	key          string
	IsSpreadLeg  bool
	CreationTime time.Time

	bin       *Bin
	processed bool
}

// NewCluster opens a cluster seeded with its first trade.
func NewCluster(t *tape.Trade) *Cluster {
	c := &Cluster{
		key:          DispatchKey(t),
		IsSpreadLeg:  t.IsSpreadLeg,
		CreationTime: time.Now(),
		openInterest: -1,
		volume:       -1,
	}
	c.AddTrade(t)
	return c
}

// DispatchKey is the registry key a trade routes to: the symbol, with a
// suffix keeping spread-leg clusters apart from outright ones.
func DispatchKey(t *tape.Trade) string {
	if t.IsSpreadLeg {
		return t.Symbol + ":spread"
	}
	return t.Symbol
}

// Key returns the registry key the cluster was opened under. It stays
// valid even after every trade has been cancelled.
func (c *Cluster) Key() string {
	return c.key
}

// AddTrade assigns the trade its individual aggressor side, folds it
// into the running totals, and inserts it into the sequence-ordered
// trade list. Trades with non-positive size are ignored.
func (c *Cluster) AddTrade(t *tape.Trade) {
	if t.Size <= 0 {
		return
	}
	d1 := t.Price - t.Bid
	d2 := t.Ask - t.Price
	diff := d1 - d2
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff < sideEpsilon:
		t.Side = tape.SideUndefined
	case d1 < d2:
		// price sits nearer the bid: a seller hit the bid
		t.Side = tape.SideSell
	default:
		t.Side = tape.SideBuy
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.quantity += t.Size
	c.money += t.Notional()

	// scan from the tail; arrivals are nearly sorted already
	for i := len(c.trades) - 1; i >= 0; i-- {
		if c.trades[i].Sequence < t.Sequence {
			c.trades = append(c.trades, nil)
			copy(c.trades[i+2:], c.trades[i+1:])
			c.trades[i+1] = t
			return
		}
	}
	c.trades = append([]*tape.Trade{t}, c.trades...)
}

// CancelTrade removes the stored trade matching the cancellation's
// sequence number and backs its contribution out of the totals. It
// reports whether a matching trade was found.
func (c *Cluster) CancelTrade(t *tape.Trade) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, stored := range c.trades {
		if stored.Sequence == t.Sequence {
			c.quantity -= stored.Size
			c.money -= stored.Notional()
			c.trades = append(c.trades[:i], c.trades[i+1:]...)
			return true
		}
	}
	return false
}

// CorrectTrade replaces the stored trade matching the correction's
// sequence number, adjusting totals by the delta between old and new
// size and price. It reports whether a matching trade was found.
func (c *Cluster) CorrectTrade(t *tape.Trade) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, stored := range c.trades {
		if stored.Sequence == t.Sequence {
			c.quantity += t.Size - stored.Size
			c.money += t.Notional() - stored.Notional()
			t.Side = stored.Side
			c.trades[i] = t
			return true
		}
	}
	return false
}

// Classify derives the cluster's net aggressor side. The first trade's
// side seeds the classification; whenever a later trade disagrees, the
// net side is re-derived against the first trade's quote: a midpoint
// move decides first, then a bid or ask move, then the raw price.
func (c *Cluster) Classify() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.trades) == 0 {
		return ErrEmptyCluster
	}
	first := c.trades[0]
	c.classification = first.Side
	mid0 := (first.Bid + first.Ask) / 2
	for _, t := range c.trades[1:] {
		if t.Side == c.classification {
			continue
		}
		mid := (t.Bid + t.Ask) / 2
		switch {
		case mid-mid0 > sideEpsilon:
			c.classification = tape.SideBuy
		case mid-mid0 < -sideEpsilon:
			c.classification = tape.SideSell
		case t.Bid > first.Bid || t.Ask > first.Ask:
			c.classification = tape.SideBuy
		case t.Bid < first.Bid || t.Ask < first.Ask:
			c.classification = tape.SideSell
		case t.Price > first.Price:
			// bid and ask held still, so only the trade price moved; a
			// rising price means the cheapest liquidity was taken first
			c.classification = tape.SideBuy
		default:
			c.classification = tape.SideSell
		}
	}
	return nil
}

// MarkProcessed transitions the processed flag and reports whether this
// call performed the transition. The flag moves false to true exactly
// once; it is the sole gate for publication.
func (c *Cluster) MarkProcessed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processed {
		return false
	}
	c.processed = true
	return true
}

// Processed reports whether the cluster has been finalized.
func (c *Cluster) Processed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed
}

// SetEnrichment records the open-interest and volume figures resolved
// from the enrichment store. Unresolved figures stay at -1.
func (c *Cluster) SetEnrichment(openInterest, volume int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openInterest = openInterest
	c.volume = volume
}

// AttachBin links a spread-leg cluster to the bin tracking its
// sibling legs.
func (c *Cluster) AttachBin(b *Bin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bin = b
}

// SpreadBin returns the bin a spread-leg cluster belongs to, nil for
// outright clusters.
func (c *Cluster) SpreadBin() *Bin {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bin
}

// Quantity is the signed sum of the sizes of the currently held trades.
func (c *Cluster) Quantity() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quantity
}

// Money is the cumulative notional of the currently held trades.
func (c *Cluster) Money() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.money
}

// Classification returns the side assigned by Classify.
func (c *Cluster) Classification() tape.Side {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classification
}

// Len is the number of trades currently held.
func (c *Cluster) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trades)
}

// FirstTrade returns the earliest trade by sequence, nil when empty.
func (c *Cluster) FirstTrade() *tape.Trade {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.trades) == 0 {
		return nil
	}
	return c.trades[0]
}

// LastTrade returns the latest trade by sequence, nil when empty.
func (c *Cluster) LastTrade() *tape.Trade {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.trades) == 0 {
		return nil
	}
	return c.trades[len(c.trades)-1]
}

// Trades returns a copy of the ordered trade list.
func (c *Cluster) Trades() []*tape.Trade {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*tape.Trade, len(c.trades))
	copy(out, c.trades)
	return out
}
