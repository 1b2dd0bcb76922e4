package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacudo/sacudo/internal/domain/track"
)

func entry(query string, id track.Identity) Entry {
	return Entry{
		Request:  track.Request{Query: query},
		Identity: id,
	}
}

func TestQueue_EnqueueRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name       string
		existing []Entry
		current  Current
		incoming Entry
		wantErr    bool
	}{
		{
			name:     "fresh entry accepted",
			incoming: entry("https://youtu.be/abc", "abc"),
			wantErr:  false,
		},
		{
			name:     "same identity rejected",
			existing: []Entry{entry("https://www.youtube.com/watch?v=abc", "abc")},
			incoming: entry("https://youtu.be/abc", "abc"),
			wantErr:  true,
		},
		{
			name:     "same literal text rejected before resolution",
			existing: []Entry{entry("lofi hip hop radio", "")},
			incoming: entry("  Lofi Hip Hop Radio ", ""),
			wantErr:  true,
		},
		{
			name:     "matches now playing identity",
			current:  Current{Identity: "abc"},
			incoming: entry("https://youtu.be/abc", "abc"),
			wantErr:  true,
		},
		{
			name:     "matches now playing URL literally",
			current:  Current{URL: "https://www.youtube.com/watch?v=abc"},
			incoming: entry("https://www.youtube.com/watch?v=abc", ""),
			wantErr:  true,
		},
		{
			name:     "matches now playing literal query",
			current:  Current{Identity: "abc", URL: "https://www.youtube.com/watch?v=abc", Query: "lofi hip hop radio"},
			incoming: entry("  Lofi Hip Hop Radio ", ""),
			wantErr:  true,
		},
		{
			name:     "different identity same-ish text accepted",
			existing: []Entry{entry("https://youtu.be/abc", "abc")},
			incoming: entry("https://youtu.be/def", "def"),
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			for _, e := range tt.existing {
				require.NoError(t, q.Enqueue(e, Current{}))
			}

			err := q.Enqueue(tt.incoming, tt.current)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDuplicate)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQueue_DequeueHeadIsFIFO(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(entry("a", "ida"), Current{}))
	require.NoError(t, q.Enqueue(entry("b", "idb"), Current{}))

	head, ok := q.DequeueHead()
	require.True(t, ok)
	assert.Equal(t, "a", head.Request.Query)

	head, ok = q.DequeueHead()
	require.True(t, ok)
	assert.Equal(t, "b", head.Request.Query)

	_, ok = q.DequeueHead()
	assert.False(t, ok)
}

func TestQueue_Normalize(t *testing.T) {
	t.Run("drops entries equal to current", func(t *testing.T) {
		q := New()
		require.NoError(t, q.Enqueue(entry("a", "ida"), Current{}))
		require.NoError(t, q.Enqueue(entry("b", "idb"), Current{}))

		q.Normalize("ida")

		snap := q.Snapshot()
		require.Len(t, snap, 1)
		assert.Equal(t, track.Identity("idb"), snap[0].Identity)
	})

	t.Run("keeps first occurrence of repeated identity", func(t *testing.T) {
		q := New()
		// Simulate identities learned after the entries were queued, so
		// enqueue-time dedup could not catch the repeat.
		q.entries = []Entry{
			entry("https://youtu.be/x", "idx"),
			entry("https://www.youtube.com/watch?v=x", "idx"),
			entry("y", "idy"),
		}

		q.Normalize("")

		snap := q.Snapshot()
		require.Len(t, snap, 2)
		assert.Equal(t, "https://youtu.be/x", snap[0].Request.Query)
		assert.Equal(t, track.Identity("idy"), snap[1].Identity)
	})

	t.Run("all-duplicate queue becomes empty", func(t *testing.T) {
		q := New()
		q.entries = []Entry{
			entry("a", "cur"),
			entry("b", "cur"),
		}

		q.Normalize("cur")
		assert.Zero(t, q.Len())
	})

	t.Run("idempotent", func(t *testing.T) {
		q := New()
		q.entries = []Entry{
			entry("a", "ida"),
			entry("b", "ida"),
			entry("c", "idc"),
		}

		q.Normalize("")
		first := q.Snapshot()
		q.Normalize("")
		assert.Equal(t, first, q.Snapshot())
	})
}

func TestQueue_SetIdentity(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(entry("some search", ""), Current{}))

	q.SetIdentity("some search", "resolved-id")

	snap := q.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, track.Identity("resolved-id"), snap[0].Identity)

	// Later enqueue of the same track by URL-derived identity now dedups.
	err := q.Enqueue(entry("https://youtu.be/resolved-id", "resolved-id"), Current{})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestQueue_Clear(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(entry("a", "ida"), Current{}))
	require.NoError(t, q.Enqueue(entry("b", "idb"), Current{}))

	removed := q.Clear()
	assert.Len(t, removed, 2)
	assert.Zero(t, q.Len())
}

func TestQueue_PushFront(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(entry("b", "idb"), Current{}))

	q.PushFront(entry("a", "ida"))

	head, ok := q.PeekHead()
	require.True(t, ok)
	assert.Equal(t, "a", head.Request.Query)
	assert.Equal(t, 2, q.Len())
}
