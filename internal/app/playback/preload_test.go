package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sacudo/sacudo/internal/domain/track"
)

func resolvedTrack(id, title string) *track.Resolved {
	return &track.Resolved{
		Title:    title,
		Identity: track.Identity(id),
	}
}

func TestPreloaderBeginOncePerQuery(t *testing.T) {
	var p Preloader

	assert.True(t, p.Begin("song a"))
	assert.False(t, p.Begin("song a"), "in-flight query must not start twice")
	assert.True(t, p.Begin("song b"), "a different query supersedes the attempt")
}

func TestPreloaderStoreAndTake(t *testing.T) {
	var p Preloader

	assert.True(t, p.Begin("song a"))
	p.Store("song a", resolvedTrack("yt:a", "Song A"))
	assert.Equal(t, "song a", p.CachedFor())

	got := p.Take("song a", "")
	assert.NotNil(t, got)
	assert.Equal(t, "Song A", got.Title)

	assert.Nil(t, p.Take("song a", ""), "take consumes the cache")
}

func TestPreloaderTakeRejectsChangedHead(t *testing.T) {
	var p Preloader

	p.Begin("song a")
	p.Store("song a", resolvedTrack("yt:a", "Song A"))

	assert.Nil(t, p.Take("song b", ""), "cache for a different head must be discarded")
	assert.Empty(t, p.CachedFor(), "a mismatched take still empties the cache")
}

func TestPreloaderTakeRejectsCurrentIdentity(t *testing.T) {
	var p Preloader

	p.Begin("song a")
	p.Store("song a", resolvedTrack("yt:a", "Song A"))

	assert.Nil(t, p.Take("song a", track.Identity("yt:a")), "must not hand back the track that is already playing")
}

func TestPreloaderStoreAfterInvalidateDropped(t *testing.T) {
	var p Preloader

	p.Begin("song a")
	p.Invalidate()
	p.Store("song a", resolvedTrack("yt:a", "Song A"))

	assert.Nil(t, p.Take("song a", ""))
}

func TestPreloaderAbandon(t *testing.T) {
	var p Preloader

	p.Begin("song a")
	p.Abandon("song a")
	assert.True(t, p.Begin("song a"), "abandon frees the slot for a retry")

	p.Abandon("song b")
	p.Store("song a", resolvedTrack("yt:a", "Song A"))
	assert.NotNil(t, p.Take("song a", ""), "abandoning another query must not affect the in-flight one")
}
