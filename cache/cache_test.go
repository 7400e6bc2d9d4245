package cache

import (
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestGetExpires(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string, int](time.Minute, clk.now)

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache returned a value")
	}
	c.Put("a", 1)
	clk.advance(59 * time.Second)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get = %v, %v; want 1, true", v, ok)
	}
	clk.advance(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry still fresh at ttl")
	}
}

func TestPutRefreshes(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	c := New[string, string](time.Minute, clk.now)

	c.Put("k", "old")
	clk.advance(50 * time.Second)
	c.Put("k", "new")
	clk.advance(50 * time.Second)
	if v, ok := c.Get("k"); !ok || v != "new" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
}

func TestPrune(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	c := New[int, int](time.Minute, clk.now)

	c.Put(1, 1)
	clk.advance(30 * time.Second)
	c.Put(2, 2)
	clk.advance(40 * time.Second)

	if n := c.Prune(); n != 1 {
		t.Fatalf("Prune = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	if _, ok := c.Get(2); !ok {
		t.Fatal("fresh entry pruned")
	}

	c.Delete(2)
	if c.Len() != 0 {
		t.Fatal("Delete left the entry")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, int](time.Hour, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Put(i%5, i)
			c.Get(i % 5)
			c.Prune()
		}(i)
	}
	wg.Wait()
	if c.Len() != 5 {
		t.Fatalf("Len = %d, want 5", c.Len())
	}
}
