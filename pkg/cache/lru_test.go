package cache

import (
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache(10, time.Minute)

	if _, ok := c.Get("w1"); ok {
		t.Fatal("empty cache returned a value")
	}

	c.Set("w1", "Ana Ruiz")
	got, ok := c.Get("w1")
	if !ok || got.(string) != "Ana Ruiz" {
		t.Fatalf("Get(w1) = %v, %v", got, ok)
	}
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := NewLRUCache(10, 10*time.Millisecond)
	c.Set("w1", "Ana Ruiz")

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("w1"); ok {
		t.Fatal("expired entry still returned")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry not lazily evicted, size=%d", c.Size())
	}
}

func TestLRUCache_EvictsOldestAtCapacity(t *testing.T) {
	c := NewLRUCache(2, time.Minute)
	c.Set("a", 1)
	time.Sleep(time.Millisecond)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry was not evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("newest entry missing")
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUCache_Invalidate(t *testing.T) {
	c := NewLRUCache(10, time.Minute)
	c.Set("w1", "Ana Ruiz")
	c.Invalidate("w1")
	if _, ok := c.Get("w1"); ok {
		t.Fatal("invalidated entry still cached")
	}

	c.Set("w1", 1)
	c.Set("w2", 2)
	c.InvalidateAll()
	if c.Size() != 0 {
		t.Fatalf("InvalidateAll left %d entries", c.Size())
	}
}
