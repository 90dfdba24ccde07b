package clusters

import (
	"sync"

	"main/internal/domain/entity/tape"
)

// Registry maps a dispatch key to the currently open cluster for that
// key. At most one cluster is open per key; entries leave the map the
// moment the scheduler finalizes them. The critical section stays free
// of blocking work.
type Registry struct {
	mu       sync.Mutex
	clusters map[string]*Cluster
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clusters: make(map[string]*Cluster)}
}

// LookupOrCreate returns the open cluster for the trade's dispatch key,
// opening one seeded with the trade when none exists. The second result
// reports whether a new cluster was created.
func (r *Registry) LookupOrCreate(t *tape.Trade) (*Cluster, bool) {
	key := DispatchKey(t)
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clusters[key]; ok {
		return c, false
	}
	c := NewCluster(t)
	r.clusters[key] = c
	return c, true
}

// Lookup returns the open cluster for the key, if any.
func (r *Registry) Lookup(key string) (*Cluster, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clusters[key]
	return c, ok
}

// Remove drops the key from the registry. Removing an absent key is a
// no-op.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clusters, key)
}

// Len is the number of currently open clusters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clusters)
}
