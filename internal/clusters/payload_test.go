package clusters

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadSingleTrade(t *testing.T) {
	c := NewCluster(makeTrade("AAPL150117C100", 7, 120, 1.05, 0.9, 1.1))
	require.NoError(t, c.Classify())

	data, err := c.Serialize()
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	p := decoded[0]

	assert.Equal(t, "AAPL150117C100", p["symbol"])
	assert.EqualValues(t, 120, p["qty"])
	assert.Equal(t, "B", p["side"])
	assert.Nil(t, p["oi"], "unresolved open interest renders as null")
	assert.EqualValues(t, -1, p["volume"])
	assert.EqualValues(t, 7, p["sequence"])
	assert.Nil(t, p["trades"], "single-trade cluster carries no nested trades")
}

func TestPayloadMultiTradeAndEnrichment(t *testing.T) {
	c := NewCluster(makeTrade("AAPL150117C100", 1, 60, 1.05, 0.9, 1.1))
	c.AddTrade(makeTrade("AAPL150117C100", 2, 40, 1.08, 0.9, 1.1))
	require.NoError(t, c.Classify())
	c.SetEnrichment(5500, 1200)

	p, err := c.Payload()
	require.NoError(t, err)

	require.NotNil(t, p.OpenInterest)
	assert.EqualValues(t, 5500, *p.OpenInterest)
	assert.EqualValues(t, 1200, p.Volume)
	require.Len(t, p.Trades, 2)
	assert.EqualValues(t, 1, p.Trades[0].Sequence)
	assert.EqualValues(t, 2, p.Trades[1].Sequence)
	assert.Equal(t, "C", p.Trades[0].Exchange)
}

func TestPayloadEmptyCluster(t *testing.T) {
	first := makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1)
	c := NewCluster(first)
	require.True(t, c.CancelTrade(first))

	_, err := c.Payload()
	assert.ErrorIs(t, err, ErrEmptyCluster)
}
