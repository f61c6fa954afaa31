package cache

import (
	"fmt"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type optionKey struct {
	Session  string
	Resource string
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int]("test_evict", 2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	// a becomes the most recent, so b is evicted next
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s missing", k)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestLRU_SetOverwrites(t *testing.T) {
	c := NewLRU[string, string]("test_overwrite", 2, time.Minute)
	c.Set("k", "old")
	c.Set("k", "new")
	if v, _ := c.Get("k"); v != "new" {
		t.Errorf("Get(k) = %q", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestLRU_TTL(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRU[string, int]("test_ttl", 10, time.Minute)
	c.now = clk.now

	c.Set("a", 1)
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("b", 2)

	clk.t = clk.t.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("a should be expired")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should still be live")
	}

	clk.t = clk.t.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after cleanup", c.Len())
	}
}

func TestLRU_DeleteFuncWithStructKeys(t *testing.T) {
	c := NewLRU[optionKey, int]("test_delete", 10, time.Minute)
	c.Set(optionKey{"s1", "budget"}, 1)
	c.Set(optionKey{"s2", "budget"}, 2)
	c.Set(optionKey{"s1", "budget-type"}, 3)
	c.Set(optionKey{"s1", "department"}, 4)

	n := c.DeleteFunc(func(k optionKey) bool { return k.Resource == "budget" })
	if n != 2 {
		t.Fatalf("DeleteFunc() = %d, want 2", n)
	}
	if _, ok := c.Get(optionKey{"s1", "budget-type"}); !ok {
		t.Error("budget-type entry must survive a budget invalidation")
	}
	c.Delete(optionKey{"s1", "department"})
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestManager_CleanNowAndStop(t *testing.T) {
	clk := &clock{t: time.Now()}
	a := NewLRU[string, int]("test_manager_a", 10, time.Second)
	b := NewLRU[int, string]("test_manager_b", 10, time.Second)
	a.now, b.now = clk.now, clk.now

	m := NewManager(nil)
	m.Register(a, b)

	a.Set("x", 1)
	for i := 0; i < 2; i++ {
		b.Set(i, fmt.Sprint(i))
	}
	clk.t = clk.t.Add(2 * time.Second)

	if n := m.CleanNow(); n != 3 {
		t.Errorf("CleanNow() = %d, want 3", n)
	}

	// Stop without StartCleanup returns at once and can repeat.
	m.Stop()
	m.Stop()

	started := NewManager(nil)
	started.StartCleanup(time.Hour)
	started.StartCleanup(time.Hour)
	done := make(chan struct{})
	go func() {
		started.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
}
