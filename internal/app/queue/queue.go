// Package queue provides the per-guild pending track queue with
// duplicate rejection and normalization.
package queue

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/sacudo/sacudo/internal/domain/track"
)

// ErrDuplicate is returned when an enqueued request matches an existing
// queue entry or the currently playing track.
var ErrDuplicate = errors.New("track is already queued or playing")

// Entry is a queued request. Identity is filled in as soon as it is known:
// at enqueue time for URLs whose id can be derived locally, or later when
// a preload resolves the entry.
type Entry struct {
	Request  track.Request
	Identity track.Identity
}

// matches reports whether two entries refer to the same track. Identity
// comparison wins when both sides know their identity; otherwise the
// literal query text decides.
func (e Entry) matches(other Entry) bool {
	if e.Identity != "" && other.Identity != "" {
		return e.Identity.Equal(other.Identity)
	}
	return equalQuery(e.Request.Query, other.Request.Query)
}

// dedupKey is the key Normalize uses to detect repeats: the identity when
// known, the literal query otherwise.
func (e Entry) dedupKey() string {
	if e.Identity != "" {
		return "id:" + string(e.Identity)
	}
	return "q:" + strings.ToLower(strings.TrimSpace(e.Request.Query))
}

func equalQuery(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Queue is an ordered, deduplicated sequence of pending track requests.
// Safe for concurrent use; all mutation happens under the internal mutex.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{entries: make([]Entry, 0)}
}

// Current describes the live track for enqueue-time dedup: the resolved
// identity, the canonical page URL and the literal query that started it.
// The zero value means nothing is playing.
type Current struct {
	Identity track.Identity
	URL      string
	Query    string
}

// Enqueue appends e unless it duplicates an existing entry or the
// currently playing track. A request matches the live track by resolved
// identity, by its canonical URL, or by literal query text.
func (q *Queue) Enqueue(e Entry, cur Current) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e.Identity.Equal(cur.Identity) {
		return ErrDuplicate
	}
	if cur.URL != "" && equalQuery(e.Request.Query, cur.URL) {
		return ErrDuplicate
	}
	if cur.Query != "" && equalQuery(e.Request.Query, cur.Query) {
		return ErrDuplicate
	}
	for _, existing := range q.entries {
		if existing.matches(e) {
			return ErrDuplicate
		}
	}

	q.entries = append(q.entries, e)
	return nil
}

// DequeueHead pops the FIFO head.
func (q *Queue) DequeueHead() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Entry{}, false
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head, true
}

// PushFront reinserts an entry at the head. Used when a dequeued entry
// could not start (no voice channel yet) and must wait for a later
// attempt; no dedup runs, the entry was just removed.
func (q *Queue) PushFront(e Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append([]Entry{e}, q.entries...)
}

// PeekHead returns the FIFO head without removing it.
func (q *Queue) PeekHead() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Entry{}, false
	}
	return q.entries[0], true
}

// Normalize rebuilds the queue preserving relative order, dropping any
// entry whose identity equals current and all but the first occurrence of
// each repeated track. Idempotent; an all-duplicate queue becomes empty.
func (q *Queue) Normalize(current track.Identity) {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]bool, len(q.entries))
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.Identity.Equal(current) {
			continue
		}
		key := e.dedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, e)
	}
	q.entries = kept
}

// SetIdentity records the resolved identity of the entry currently holding
// the given query, so later dedup uses the canonical identity instead of
// literal text. No-op if the entry has moved on.
func (q *Queue) SetIdentity(query string, id track.Identity) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.entries {
		if equalQuery(q.entries[i].Request.Query, query) {
			q.entries[i].Identity = id
			return
		}
	}
}

// Snapshot returns a copy of the queued entries in order.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear removes and returns all entries.
func (q *Queue) Clear() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := q.entries
	q.entries = make([]Entry, 0)
	return removed
}
