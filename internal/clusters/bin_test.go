package clusters

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeLeg(t *testing.T, seq, size int64) *Cluster {
	t.Helper()
	tr := makeTrade("AAPL150117C100", seq, size, 1.05, 0.9, 1.1)
	tr.IsSpreadLeg = true
	return NewCluster(tr)
}

func TestBinPublishesSurvivingLegs(t *testing.T) {
	bin := &Bin{}
	legA := makeLeg(t, 1, 150)
	legB := makeLeg(t, 2, 120)
	legC := makeLeg(t, 3, 10)
	for _, leg := range []*Cluster{legA, legB, legC} {
		bin.AddLeg(leg)
		leg.AttachBin(bin)
	}

	complete, aggregate, err := bin.ResolveLeg(legA, true)
	require.NoError(t, err)
	assert.False(t, complete)

	complete, aggregate, err = bin.ResolveLeg(legB, true)
	require.NoError(t, err)
	assert.False(t, complete)

	complete, aggregate, err = bin.ResolveLeg(legC, false)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, 2, bin.NumProcessed())
	assert.Equal(t, 2, bin.LegCount())

	require.NotNil(t, aggregate)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(aggregate, &decoded))
	require.Len(t, decoded, 2)
	assert.EqualValues(t, 1, decoded[0]["sequence"])
	assert.EqualValues(t, 2, decoded[1]["sequence"])
}

func TestBinAllLegsBelowThreshold(t *testing.T) {
	bin := &Bin{}
	legA := makeLeg(t, 1, 5)
	legB := makeLeg(t, 2, 8)
	bin.AddLeg(legA)
	bin.AddLeg(legB)

	complete, aggregate, err := bin.ResolveLeg(legA, false)
	require.NoError(t, err)
	// one disqualified leg left, zero processed: not complete yet
	assert.False(t, complete)

	complete, aggregate, err = bin.ResolveLeg(legB, false)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Nil(t, aggregate, "empty bin must not publish")
	assert.Equal(t, 0, bin.LegCount())
	assert.Equal(t, 0, bin.NumProcessed())
}

func TestSpreadTrackerReusesOpenBin(t *testing.T) {
	tracker := NewSpreadTracker()
	a := tracker.Bin("AAPL")
	b := tracker.Bin("AAPL")
	other := tracker.Bin("SPY")

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, tracker.OpenBins())
}

func TestSpreadTrackerRemoveChecksIdentity(t *testing.T) {
	tracker := NewSpreadTracker()
	stale := tracker.Bin("AAPL")
	tracker.Remove("AAPL", stale)
	require.Equal(t, 0, tracker.OpenBins())

	fresh := tracker.Bin("AAPL")
	tracker.Remove("AAPL", stale)
	got := tracker.Bin("AAPL")
	assert.Same(t, fresh, got, "stale bin must not evict a newer one")
}
