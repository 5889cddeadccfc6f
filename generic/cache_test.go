package generic_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/homecare-engine/generic"
)

func TestCache_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := generic.NewCache[string, int](time.Minute).WithClock(func() time.Time { return now })

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(61 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on read")
}

func TestCache_ZeroTTLDisables(t *testing.T) {
	c := generic.NewCache[string, int](0)
	c.Set("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_NilIsSafe(t *testing.T) {
	var c *generic.Cache[string, int]
	c.Set("a", 1)
	c.Invalidate("a")
	c.Clear()
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_Invalidation(t *testing.T) {
	c := generic.NewCache[string, int](time.Hour)
	c.Set("psw|default", 1)
	c.Set("psw|org-1", 2)
	c.Set("nursing|default", 3)

	c.Invalidate("nursing|default")
	_, ok := c.Get("nursing|default")
	assert.False(t, ok)

	c.InvalidateWhere(func(k string) bool { return k == "psw|org-1" })
	_, ok = c.Get("psw|org-1")
	assert.False(t, ok)
	_, ok = c.Get("psw|default")
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	locks := generic.NewKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("p1")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, locks.Held(), "entries are released")
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	locks := generic.NewKeyedMutex()
	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	assert.Equal(t, 1, locks.Held())
}
