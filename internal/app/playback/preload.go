package playback

import (
	"sync"

	"github.com/sacudo/sacudo/internal/domain/track"
)

// Preloader caches at most one speculatively resolved track per guild: the
// queue head, resolved while the current track still plays. The cache is
// tagged with the query it was resolved from so a changed head invalidates
// it.
type Preloader struct {
	mu       sync.Mutex
	cached   *track.Resolved
	forQuery string
	inflight string // query currently being resolved, "" when none
}

// Begin marks a preload attempt for query. Returns false when an attempt
// for the same query is already running or its result is already cached.
func (p *Preloader) Begin(query string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inflight == query || (p.cached != nil && p.forQuery == query) {
		return false
	}
	p.inflight = query
	return true
}

// Store caches the resolved track for query. The result is dropped when a
// competing invalidation already moved the preloader on.
func (p *Preloader) Store(query string, t *track.Resolved) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inflight != query {
		return
	}
	p.inflight = ""
	p.cached = t
	p.forQuery = query
}

// Abandon clears the in-flight marker after a failed resolve.
func (p *Preloader) Abandon(query string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inflight == query {
		p.inflight = ""
	}
}

// Take consumes the cached track if it is still valid: resolved from
// headQuery and not identical to the live track. A stale cache is
// discarded either way.
func (p *Preloader) Take(headQuery string, current track.Identity) *track.Resolved {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached == nil {
		return nil
	}
	cached := p.cached
	p.cached = nil
	forQuery := p.forQuery
	p.forQuery = ""

	if forQuery != headQuery || cached.Identity.Equal(current) {
		return nil
	}
	return cached
}

// Invalidate discards the cache and any in-flight attempt's claim to it.
func (p *Preloader) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cached = nil
	p.forQuery = ""
	p.inflight = ""
}

// CachedFor returns the query of the cached result, "" when empty.
func (p *Preloader) CachedFor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forQuery
}
