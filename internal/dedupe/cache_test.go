// ABOUTME: Tests for the event dedupe cache.
// ABOUTME: Validates TTL expiration, size limits, eviction, cleanup, and concurrency safety.

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_Seen(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.Seen("$event1"), "first delivery is new")
	assert.True(t, cache.Seen("$event1"), "redelivery is a duplicate")
	assert.False(t, cache.Seen("$event2"))
}

func TestCache_Expiry(t *testing.T) {
	cache := New(time.Minute, 100)
	defer cache.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	assert.False(t, cache.Seen("$event"))
	now = now.Add(61 * time.Second)
	assert.False(t, cache.Seen("$event"), "expired keys are new again")
	assert.True(t, cache.Seen("$event"))
}

func TestCache_Forget(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Seen("$event")
	cache.Forget("$event")
	assert.False(t, cache.Seen("$event"))
	cache.Forget("$never-seen")
}

func TestCache_EvictsOldest(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	for i := 1; i <= 4; i++ {
		cache.Seen(fmt.Sprintf("$e%d", i))
	}

	assert.Equal(t, 3, cache.Len())
	assert.False(t, cache.Seen("$e1"), "oldest key was evicted")
	assert.True(t, cache.Seen("$e4"))
}

func TestCache_RemoveExpired(t *testing.T) {
	cache := New(time.Minute, 100)
	defer cache.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Seen("$old")
	now = now.Add(30 * time.Second)
	cache.Seen("$new")
	now = now.Add(45 * time.Second)

	cache.removeExpired()
	assert.Equal(t, 1, cache.Len())
	assert.True(t, cache.Seen("$new"))
}

func TestCache_ConcurrentSeen(t *testing.T) {
	cache := New(5*time.Minute, 1000)
	defer cache.Close()

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !cache.Seen("$same") {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load(), "exactly one caller may treat the event as new")
}

func TestCache_CloseIdempotent(t *testing.T) {
	cache := New(time.Minute, 10)
	cache.Close()
	cache.Close()
}
