package clusters

import (
	"encoding/json"

	"main/internal/domain/entity/tape"
)

// Payload is the serialized form of a finalized cluster. Open interest
// renders as JSON null while unresolved; the nested trades array is
// null unless more than one trade composed the cluster.
type Payload struct {
	Symbol       string        `json:"symbol"`
	Quantity     int64         `json:"qty"`
	Money        float64       `json:"money"`
	Side         tape.Side     `json:"side"`
	OpenInterest *int64        `json:"oi"`
	Volume       int64         `json:"volume"`
	Time         int64         `json:"time"`
	Sequence     int64         `json:"sequence"`
	CreationTime int64         `json:"creationTime"`
	Bid          float64       `json:"bid"`
	Ask          float64       `json:"ask"`
	Price        float64       `json:"price"`
	Type         string        `json:"type"`
	IsSpread     bool          `json:"isSpread"`
	Conditions   string        `json:"conditions"`
	Trades       []TradeRecord `json:"trades"`
}

// TradeRecord is the per-trade entry of a multi-trade cluster payload.
type TradeRecord struct {
	Time     int64     `json:"time"`
	Bid      float64   `json:"bid"`
	Ask      float64   `json:"ask"`
	Price    float64   `json:"price"`
	Side     tape.Side `json:"side"`
	Exchange string    `json:"exchange"`
	Size     int64     `json:"size"`
	Sequence int64     `json:"sequence"`
}

// Payload snapshots the cluster into its published form. It returns an
// error when every trade has been cancelled out of the cluster.
func (c *Cluster) Payload() (*Payload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.trades) == 0 {
		return nil, ErrEmptyCluster
	}
	first := c.trades[0]
	side := c.classification
	if side == "" {
		side = tape.SideUndefined
	}
	p := &Payload{
		Symbol:       first.Symbol,
		Quantity:     c.quantity,
		Money:        c.money,
		Side:         side,
		Volume:       c.volume,
		Time:         first.Time,
		Sequence:     first.Sequence,
		CreationTime: c.CreationTime.UnixMilli(),
		Bid:          first.Bid,
		Ask:          first.Ask,
		Price:        first.Price,
		Type:         first.Type,
		IsSpread:     c.IsSpreadLeg,
		Conditions:   first.Conditions,
	}
	if c.openInterest >= 0 {
		oi := c.openInterest
		p.OpenInterest = &oi
	}
	if len(c.trades) > 1 {
		p.Trades = make([]TradeRecord, 0, len(c.trades))
		for _, t := range c.trades {
			side := t.Side
			if side == "" {
				side = tape.SideUndefined
			}
			p.Trades = append(p.Trades, TradeRecord{
				Time:     t.Time,
				Bid:      t.Bid,
				Ask:      t.Ask,
				Price:    t.Price,
				Side:     side,
				Exchange: t.Exchange,
				Size:     t.Size,
				Sequence: t.Sequence,
			})
		}
	}
	return p, nil
}

// Serialize renders the cluster as the one-element JSON array the
// downstream consumers expect.
func (c *Cluster) Serialize() ([]byte, error) {
	p, err := c.Payload()
	if err != nil {
		return nil, err
	}
	return json.Marshal([]*Payload{p})
}
