package tape

import (
	"encoding/json"
	"fmt"
	"time"
)

// Side is the aggressor side of a trade or of an aggregated cluster.
type Side string

const (
	SideBuy       Side = "B"
	SideSell      Side = "S"
	SideUndefined Side = "U"
)

// Trade models a single time-and-sale execution as it arrives from the
// feed. Sequence numbers are unique and strictly increasing per symbol
// and act as the chronological sort key.
type Trade struct {
	Symbol       string  `json:"symbol"`
	Sequence     int64   `json:"sequence"`
	Price        float64 `json:"price"`
	Size         int64   `json:"size"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Exchange     string  `json:"exchange"`
	Time         int64   `json:"time"`
	Type         string  `json:"type,omitempty"`
	Conditions   string  `json:"conditions,omitempty"`
	IsSpreadLeg  bool    `json:"isSpread"`
	IsCancel     bool    `json:"isCancel,omitempty"`
	IsCorrection bool    `json:"isCorrection,omitempty"`

	// Side is assigned when the trade is absorbed into a cluster, by
	// comparing the trade price against the prevailing bid and ask.
	Side Side `json:"side,omitempty"`
}

// Timestamp converts the millisecond epoch Time into a time.Time.
func (t *Trade) Timestamp() time.Time {
	return time.UnixMilli(t.Time)
}

// Notional is the dollar value the trade contributes to a cluster's
// money total (contract multiplier of 100).
func (t *Trade) Notional() float64 {
	return float64(t.Size) * t.Price * 100
}

// Marshal renders the trade as its wire representation.
func Marshal(t *Trade) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("nil trade")
	}
	return json.Marshal(t)
}

// Unmarshal parses a wire representation back into a Trade.
func Unmarshal(data []byte) (*Trade, error) {
	var t Trade
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse trade: %w", err)
	}
	if t.Symbol == "" {
		return nil, fmt.Errorf("trade is missing symbol")
	}
	return &t, nil
}
