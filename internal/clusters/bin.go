package clusters

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Bin tracks the sibling leg-clusters of one multi-leg spread order.
// Legs join as they are observed; each leg reaching a terminal decision
// either bumps the processed count (qualified) or leaves the leg set
// (below threshold). The bin is complete when every remaining leg has
// been processed.
type Bin struct {
	mu           sync.Mutex
	legs         []*Cluster
	numProcessed int
}

// AddLeg registers a newly opened leg-cluster with the bin.
func (b *Bin) AddLeg(c *Cluster) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.legs = append(b.legs, c)
}

// ResolveLeg applies a finalized leg's terminal decision. Qualified
// legs stay in the set and count as processed; disqualified legs are
// removed. When the bin completes, the surviving legs are serialized
// under the bin lock and returned; a completed bin with no survivors
// yields a nil aggregate and must not be published.
func (b *Bin) ResolveLeg(c *Cluster, qualified bool) (complete bool, aggregate []byte, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if qualified {
		b.numProcessed++
	} else {
		for i, leg := range b.legs {
			if leg == c {
				b.legs = append(b.legs[:i], b.legs[i+1:]...)
				break
			}
		}
	}
	if b.numProcessed < len(b.legs) {
		return false, nil, nil
	}
	if len(b.legs) == 0 {
		return true, nil, nil
	}
	payloads := make([]*Payload, 0, len(b.legs))
	for _, leg := range b.legs {
		p, perr := leg.Payload()
		if perr != nil {
			return true, nil, fmt.Errorf("serialize spread leg: %w", perr)
		}
		payloads = append(payloads, p)
	}
	aggregate, err = json.Marshal(payloads)
	if err != nil {
		return true, nil, fmt.Errorf("serialize spread bin: %w", err)
	}
	return true, aggregate, nil
}

// NumProcessed returns the count of legs that reached a qualified
// terminal decision.
func (b *Bin) NumProcessed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numProcessed
}

// LegCount returns the current size of the leg set.
func (b *Bin) LegCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.legs)
}

// SpreadTracker maps an underlying ticker to the bin currently
// collecting that spread order's legs.
type SpreadTracker struct {
	mu   sync.Mutex
	bins map[string]*Bin
}

// NewSpreadTracker returns an empty tracker.
func NewSpreadTracker() *SpreadTracker {
	return &SpreadTracker{bins: make(map[string]*Bin)}
}

// Bin returns the open bin for the ticker, creating one when the first
// leg of a spread order is observed.
func (st *SpreadTracker) Bin(ticker string) *Bin {
	st.mu.Lock()
	defer st.mu.Unlock()
	b, ok := st.bins[ticker]
	if !ok {
		b = &Bin{}
		st.bins[ticker] = b
	}
	return b
}

// Remove drops the bin from tracking. The identity check keeps a
// completed bin from evicting a newer bin opened under the same ticker.
func (st *SpreadTracker) Remove(ticker string, b *Bin) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.bins[ticker] == b {
		delete(st.bins, ticker)
	}
}

// OpenBins is the number of bins still awaiting legs.
func (st *SpreadTracker) OpenBins() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.bins)
}
