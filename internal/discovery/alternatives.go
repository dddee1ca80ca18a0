package discovery

import (
	"sync"

	"giftflow/internal/types"
)

// NextAlternative picks the product to offer after rejectedURL was denied.
// pool is ordered price-descending, so the element after the rejected one is
// the next closest to budget. An unknown rejectedURL restarts from the best
// remaining option. It returns nil when pool is empty or the rejected product
// was already the last one.
func NextAlternative(rejectedURL string, pool []types.ProductCandidate) *types.ProductCandidate {
	for i := range pool {
		if pool[i].URL != rejectedURL {
			continue
		}
		if i < len(pool)-1 {
			next := pool[i+1]
			return &next
		}
		return nil
	}
	if len(pool) == 0 {
		return nil
	}
	first := pool[0]
	return &first
}

// AlternativeCache keeps, per work item, the budget-qualifying candidates
// that have not been offered yet. Every URL ever offered for an item is
// remembered so a rebuilt pool never re-offers it.
type AlternativeCache struct {
	mu      sync.Mutex
	pools   map[string][]types.ProductCandidate
	offered map[string]map[string]bool
}

// NewAlternativeCache creates an empty cache.
func NewAlternativeCache() *AlternativeCache {
	return &AlternativeCache{
		pools:   make(map[string][]types.ProductCandidate),
		offered: make(map[string]map[string]bool),
	}
}

// Put replaces the pool for id, dropping anything already offered.
func (c *AlternativeCache) Put(id string, pool []types.ProductCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := c.offered[id]
	kept := make([]types.ProductCandidate, 0, len(pool))
	for _, p := range pool {
		if seen[p.URL] {
			continue
		}
		kept = append(kept, p)
	}
	c.pools[id] = kept
}

// MarkOffered records that url has been shown for id.
func (c *AlternativeCache) MarkOffered(id, url string) {
	if url == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(id, url)
}

func (c *AlternativeCache) markLocked(id, url string) {
	seen, ok := c.offered[id]
	if !ok {
		seen = make(map[string]bool)
		c.offered[id] = seen
	}
	seen[url] = true
}

// Pool returns a copy of the remaining pool for id.
func (c *AlternativeCache) Pool(id string) []types.ProductCandidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.ProductCandidate(nil), c.pools[id]...)
}

// Len returns the remaining pool size for id.
func (c *AlternativeCache) Len(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pools[id])
}

// Take selects the next alternative for id after rejectedURL was denied and
// removes it from the pool. It returns the candidate (nil when exhausted) and
// the number of candidates left.
func (c *AlternativeCache) Take(id, rejectedURL string) (*types.ProductCandidate, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pool := c.pools[id]
	next := NextAlternative(rejectedURL, pool)
	if next == nil {
		return nil, len(pool)
	}

	remaining := make([]types.ProductCandidate, 0, len(pool))
	for _, p := range pool {
		if p.URL != next.URL {
			remaining = append(remaining, p)
		}
	}
	c.pools[id] = remaining
	c.markLocked(id, next.URL)
	return next, len(remaining)
}

// Forget drops everything known about id.
func (c *AlternativeCache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pools, id)
	delete(c.offered, id)
}

// Clear drops every pool.
func (c *AlternativeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools = make(map[string][]types.ProductCandidate)
	c.offered = make(map[string]map[string]bool)
}
