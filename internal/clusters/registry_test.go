package clusters

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupOrCreate(t *testing.T) {
	r := NewRegistry()

	first := makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1)
	c, created := r.LookupOrCreate(first)
	require.True(t, created)
	require.Equal(t, 1, c.Len())

	again, created := r.LookupOrCreate(makeTrade("AAPL150117C100", 2, 10, 1.0, 0.9, 1.1))
	assert.False(t, created)
	assert.Same(t, c, again)
	// LookupOrCreate does not merge the trade itself; that is the
	// router's job on the not-created path
	assert.Equal(t, 1, again.Len())
}

func TestRegistrySeparatesSpreadLegs(t *testing.T) {
	r := NewRegistry()

	plain := makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1)
	leg := makeTrade("AAPL150117C100", 2, 10, 1.0, 0.9, 1.1)
	leg.IsSpreadLeg = true

	a, _ := r.LookupOrCreate(plain)
	b, _ := r.LookupOrCreate(leg)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	c, _ := r.LookupOrCreate(makeTrade("AAPL150117C100", 1, 10, 1.0, 0.9, 1.1))

	r.Remove(c.Key())
	r.Remove(c.Key())
	assert.Equal(t, 0, r.Len())

	_, ok := r.Lookup(c.Key())
	assert.False(t, ok)
}

func TestRegistryConcurrentCreateYieldsOneCluster(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 16; i++ {
		seq := int64(i + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created := r.LookupOrCreate(makeTrade("AAPL150117C100", seq, 10, 1.0, 0.9, 1.1))
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	assert.Equal(t, 1, r.Len())
}
