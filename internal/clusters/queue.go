package clusters

import "sync"

// clusterQueue is a blocking FIFO deque of open clusters. The scheduler
// needs head removal, tail insertion, and a peek at the tail to apply
// its quietness heuristic, so a plain channel does not fit.
type clusterQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Cluster
	closed bool
}

func newClusterQueue() *clusterQueue {
	q := &clusterQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends a cluster at the tail. Puts after Close are dropped.
func (q *clusterQueue) Put(c *Cluster) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, c)
	q.cond.Signal()
}

// Take blocks until a cluster is available at the head or the queue is
// closed. The second result is false once the queue is closed and
// drained.
func (q *clusterQueue) Take() (*Cluster, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	c := q.items[0]
	q.items = q.items[1:]
	return c, true
}

// Last peeks at the tail without removing it, nil when empty.
func (q *clusterQueue) Last() *Cluster {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[len(q.items)-1]
}

// Len is the current queue depth.
func (q *clusterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes all blocked takers; pending items remain drainable.
func (q *clusterQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
