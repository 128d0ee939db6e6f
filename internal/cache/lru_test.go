package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLRU[T any](maxSize int, ttl time.Duration) (*LRUCache[T], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	c := NewLRUCache[T](maxSize, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCacheEviction(t *testing.T) {
	c, _ := newTestLRU[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1") // key2 is now least recently used
	c.Set("key4", "value4")

	if _, found := c.Get("key2"); found {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCacheTTLExpiration(t *testing.T) {
	c, clock := newTestLRU[string](10, 50*time.Millisecond)

	c.Set("key1", "value1")
	if v, found := c.Get("key1"); !found || v != "value1" {
		t.Fatalf("Get(key1) = %q, %v", v, found)
	}

	clock.advance(60 * time.Millisecond)
	if _, found := c.Get("key1"); found {
		t.Error("key1 should have expired")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry should be dropped on access, size %d", c.Size())
	}
}

func TestLRUCacheOverwriteRefreshesTTL(t *testing.T) {
	c, clock := newTestLRU[int](10, time.Minute)

	c.Set("k", 1)
	clock.advance(50 * time.Second)
	c.Set("k", 2)
	clock.advance(50 * time.Second)

	v, found := c.Get("k")
	if !found || v != 2 {
		t.Errorf("Get(k) = %d, %v; want 2, true", v, found)
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c, clock := newTestLRU[string](10, time.Minute)

	c.Set("old1", "a")
	c.Set("old2", "b")
	clock.advance(45 * time.Second)
	c.Set("fresh", "c")
	clock.advance(30 * time.Second)

	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2", removed)
	}
	if _, found := c.Get("fresh"); !found {
		t.Error("fresh should survive cleanup")
	}
}

func TestLRUCacheDeleteAndPurge(t *testing.T) {
	c, _ := newTestLRU[string](10, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")

	c.Delete("a")
	c.Delete("missing")
	if _, found := c.Get("a"); found {
		t.Error("a should be deleted")
	}

	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d", c.Size())
	}
}

func TestLRUCacheStats(t *testing.T) {
	c, _ := newTestLRU[string](10, time.Hour)
	c.Set("a", "1")
	c.Get("a")
	c.Get("a")
	c.Get("b")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestNewLRUCacheClampsSize(t *testing.T) {
	c := NewLRUCache[string](0, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestManagerSweep(t *testing.T) {
	a, clock := newTestLRU[string](10, time.Second)
	b := NewLRUCache[string](10, time.Hour)
	a.Set("x", "1")
	a.Set("y", "2")
	b.Set("z", "3")
	clock.advance(2 * time.Second)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)
	if n := m.Sweep(); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop() // second stop is a no-op
}

func BenchmarkLRUCache(b *testing.B) {
	c := NewLRUCache[string](1000, time.Hour)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%10 == 0 {
			c.Set("bench-key", "v")
		} else {
			c.Get("bench-key")
		}
	}
}
