package cache

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTTLCacheSetAndGet(t *testing.T) {
	c := NewTTLCache[string](time.Second, 0, 10)
	defer c.Stop()

	c.Set("key", "value")

	if c.Count() != 1 {
		t.Fatalf("expected count 1, got %d", c.Count())
	}

	v, ok := c.Get("key")
	if !ok {
		t.Fatalf("expected to find key")
	}
	if v != "value" {
		t.Errorf("expected value 'value', got %v", v)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestTTLCacheExpiration(t *testing.T) {
	c := NewTTLCache[string](50*time.Millisecond, 10*time.Millisecond, 10)
	defer c.Stop()

	c.Set("temp", "data")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("temp"); ok {
		t.Errorf("expected item to expire")
	}
	if c.Count() != 0 {
		t.Errorf("expected cache to be empty after expiration, got %d", c.Count())
	}
}

func TestTTLCacheNoExpiry(t *testing.T) {
	c := NewTTLCache[int](10*time.Millisecond, 0, 10)
	defer c.Stop()

	c.SetWithTTL("forever", 7, 0)
	time.Sleep(20 * time.Millisecond)

	if v, ok := c.Get("forever"); !ok || v != 7 {
		t.Errorf("expected non-expiring entry to survive, got %v %v", v, ok)
	}
}

func TestTTLCacheEviction(t *testing.T) {
	c := NewTTLCache[int](time.Second, 0, 2)
	defer c.Stop()

	c.Set("a", 1)
	time.Sleep(time.Millisecond)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)
	c.Set("c", 3) // should evict "a"

	if c.Count() != 2 {
		t.Fatalf("expected count 2 after eviction, got %d", c.Count())
	}

	if _, ok := c.Get("a"); ok {
		t.Errorf("expected 'a' to be evicted")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("expected to get 2 for 'b', got %v", v)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("expected to get 3 for 'c', got %v", v)
	}
}

func TestTTLCacheStopIsIdempotent(t *testing.T) {
	c := NewTTLCache[int](time.Second, time.Millisecond, 0)
	c.Stop()
	c.Stop()
}
