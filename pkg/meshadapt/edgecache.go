package meshadapt

import (
	"context"
	"sync"

	"github.com/chazu/brepmesh/pkg/discretize"
	"github.com/chazu/brepmesh/pkg/topo"
)

// edgeEntry is the pending discretization of one edge. Exactly one
// goroutine publishes it; any number may wait for it.
type edgeEntry struct {
	ready chan struct{}
	res   *discretize.Result
	err   error
}

func (e *edgeEntry) publish(res *discretize.Result, err error) {
	e.res, e.err = res, err
	close(e.ready)
}

// wait blocks until the entry is published or ctx is done.
func (e *edgeEntry) wait(ctx context.Context) (*discretize.Result, error) {
	select {
	case <-e.ready:
		return e.res, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// edgeCache holds the edge discretizations computed during one pass, keyed
// by edge ID.
type edgeCache struct {
	mu      sync.Mutex
	entries map[topo.ID]*edgeEntry
}

func newEdgeCache() *edgeCache {
	return &edgeCache{entries: make(map[topo.ID]*edgeEntry)}
}

// claim returns the entry for id. The second result is true for the first
// caller only, which becomes the entry's writer.
func (c *edgeCache) claim(id topo.ID) (*edgeEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		return e, false
	}
	e := &edgeEntry{ready: make(chan struct{})}
	c.entries[id] = e
	return e, true
}

func (c *edgeCache) get(id topo.ID) (*edgeEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e, ok
}
