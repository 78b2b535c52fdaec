package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestMemo_GetPut(t *testing.T) {
	c := New[string](0)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("a", "one")
	v, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if v != "one" {
		t.Errorf("expected %q, got %q", "one", v)
	}
}

func TestMemo_FirstWriterWins(t *testing.T) {
	c := New[string](0)
	c.Put("k", "first")
	c.Put("k", "second")

	v, _ := c.Get("k")
	if v != "first" {
		t.Errorf("expected first write to win, got %q", v)
	}
}

func TestMemo_EvictsOldest(t *testing.T) {
	c := New[int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("expected oldest entry evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b retained")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c retained")
	}
}

func TestMemo_GetRefreshesLRUOrder(t *testing.T) {
	c := New[int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // a becomes most recent
	c.Put("c", 3)

	if _, ok := c.Get("a"); !ok {
		t.Error("expected recently used entry retained")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected least recently used entry evicted")
	}
}

func TestMemo_Stats(t *testing.T) {
	c := New[int](10)
	c.Put("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 2 {
		t.Errorf("expected 2 hits, got %d", s.Hits)
	}
	if s.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", s.Misses)
	}
	if s.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", s.Entries)
	}
}

func TestMemo_ConcurrentAccess(t *testing.T) {
	c := New[int](100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%20)
				c.Put(key, n)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 20 {
		t.Errorf("expected 20 entries, got %d", c.Len())
	}
}
