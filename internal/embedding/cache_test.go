package embedding

import "testing"

func TestTextCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newTextCache(2)
	if v, ok := c.get("a"); ok || v != nil {
		t.Fatal("expected miss on empty cache")
	}

	c.set("a", []float32{1, 2, 3})
	v, ok := c.get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("get after set: got %v, %v", v, ok)
	}

	c.set("b", []float32{4, 5})
	c.get("a") // touch a so b is the eviction candidate
	c.set("c", []float32{6})

	if _, ok := c.get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.get("a"); !ok {
		t.Error("expected touched entry a to remain")
	}
	if _, ok := c.get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.len())
	}
}

func TestTextCache_SetExistingUpdatesValue(t *testing.T) {
	c := newTextCache(2)
	c.set("a", []float32{1})
	c.set("a", []float32{2})
	v, ok := c.get("a")
	if !ok || v[0] != 2 {
		t.Errorf("expected updated value, got %v, %v", v, ok)
	}
	if c.len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.len())
	}
}
