package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingCatalog struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (c *countingCatalog) List(context.Context) ([]string, []string, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, nil, c.err
	}
	return []string{"Project A", "Project B"}, []string{"Document 1"}, nil
}

func TestCatalogCacheServesFromMemory(t *testing.T) {
	src := &countingCatalog{}
	c := NewCatalogCache(src, time.Hour)

	for i := 0; i < 3; i++ {
		projects, docs, err := c.List(context.Background())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(projects) != 2 || len(docs) != 1 {
			t.Fatalf("List() = %v, %v", projects, docs)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("backend called %d times, want 1", n)
	}

	c.Invalidate()
	if _, _, err := c.List(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("backend called %d times after Invalidate, want 2", n)
	}
}

func TestCatalogCacheReturnsCopies(t *testing.T) {
	c := NewCatalogCache(&countingCatalog{}, time.Hour)

	projects, _, _ := c.List(context.Background())
	projects[0] = "mutated"

	again, _, _ := c.List(context.Background())
	if again[0] != "Project A" {
		t.Errorf("cached catalog was mutated: %v", again)
	}
}

func TestCatalogCacheDoesNotCacheErrors(t *testing.T) {
	src := &countingCatalog{err: errors.New("sheet unavailable")}
	c := NewCatalogCache(src, time.Hour)

	if _, _, err := c.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	src.err = nil
	projects, _, err := c.List(context.Background())
	if err != nil || len(projects) != 2 {
		t.Fatalf("List() = %v, %v", projects, err)
	}
}

func TestCatalogCacheCollapsesConcurrentMisses(t *testing.T) {
	src := &countingCatalog{delay: 20 * time.Millisecond}
	c := NewCatalogCache(src, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = c.List(context.Background())
		}()
	}
	wg.Wait()

	if n := src.calls.Load(); n > 2 {
		t.Errorf("backend called %d times for concurrent misses", n)
	}
}
