package playback

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardTryAcquire(t *testing.T) {
	var g Guard

	assert.False(t, g.Held())
	assert.True(t, g.TryAcquire())
	assert.True(t, g.Held())
	assert.False(t, g.TryAcquire())

	g.Release()
	assert.False(t, g.Held())
	assert.True(t, g.TryAcquire())
}

func TestGuardReleaseWhenNotHeld(t *testing.T) {
	var g Guard

	g.Release()
	assert.False(t, g.Held())
	assert.True(t, g.TryAcquire())
}

func TestGuardSingleWinner(t *testing.T) {
	var g Guard
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}
