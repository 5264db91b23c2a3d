package workflow

import (
	"testing"
	"time"
)

func wf(id string) Workflow {
	return Workflow{ID: id, Name: id, Status: StatusActive}
}

func TestCache_InsertAndGet(t *testing.T) {
	c := NewCache(10)
	c.Insert(wf("w1"), "digest-1")

	e, ok := c.Get("w1")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if e.Digest != "digest-1" || e.Workflow.ID != "w1" {
		t.Errorf("Get() = %+v, want digest-1/w1", e)
	}
}

func TestCache_GetByDigest(t *testing.T) {
	c := NewCache(10)
	c.Insert(wf("w1"), "digest-1")
	c.Insert(wf("w2"), "digest-2")

	e, ok := c.GetByDigest("digest-2")
	if !ok || e.Workflow.ID != "w2" {
		t.Errorf("GetByDigest() = %+v, %v, want w2/true", e, ok)
	}

	if _, ok := c.GetByDigest("missing"); ok {
		t.Error("GetByDigest() found an entry for a digest never inserted")
	}
}

func TestCache_EvictsOldestWhenFull(t *testing.T) {
	c := NewCache(2)

	c.entries["w1"] = Entry{Workflow: wf("w1"), Digest: "d1", CachedAt: time.Now().Add(-2 * time.Minute)}
	c.entries["w2"] = Entry{Workflow: wf("w2"), Digest: "d2", CachedAt: time.Now().Add(-1 * time.Minute)}

	c.Insert(wf("w3"), "d3")

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get("w1"); ok {
		t.Error("oldest entry w1 was not evicted")
	}
	if _, ok := c.Get("w2"); !ok {
		t.Error("w2 should still be cached")
	}
	if _, ok := c.Get("w3"); !ok {
		t.Error("newly inserted w3 should be cached")
	}
}

func TestCache_InsertOverwriteDoesNotEvict(t *testing.T) {
	c := NewCache(1)
	c.Insert(wf("w1"), "d1")
	c.Insert(wf("w1"), "d1-updated")

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	e, _ := c.Get("w1")
	if e.Digest != "d1-updated" {
		t.Errorf("Digest = %q, want d1-updated", e.Digest)
	}
}

func TestCache_RemoveAndClear(t *testing.T) {
	c := NewCache(10)
	c.Insert(wf("w1"), "d1")
	c.Insert(wf("w2"), "d2")

	removed, ok := c.Remove("w1")
	if !ok || removed.Workflow.ID != "w1" {
		t.Errorf("Remove() = %+v, %v, want w1/true", removed, ok)
	}
	if _, ok := c.Get("w1"); ok {
		t.Error("w1 still present after Remove()")
	}

	c.Clear()
	if !c.IsEmpty() {
		t.Error("IsEmpty() = false after Clear()")
	}
}

func TestCache_KeysAndDigests(t *testing.T) {
	c := NewCache(10)
	c.Insert(wf("w1"), "d1")
	c.Insert(wf("w2"), "d2")

	keys := c.Keys()
	if len(keys) != 2 {
		t.Fatalf("Keys() len = %d, want 2", len(keys))
	}
	digests := c.Digests()
	if len(digests) != 2 {
		t.Fatalf("Digests() len = %d, want 2", len(digests))
	}
}

func TestDigest_StableForSameGraphChangesOnEdit(t *testing.T) {
	a := wf("w1")
	a.GraphData = GraphData{Nodes: []Node{{ID: "n1", NodeType: "camera"}}}

	d1, err := Digest(a)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	d2, err := Digest(a)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	if d1 != d2 {
		t.Error("Digest() not stable across calls on identical graph data")
	}

	b := a
	b.GraphData = GraphData{Nodes: []Node{{ID: "n1", NodeType: "gpio_read"}}}
	d3, err := Digest(b)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	if d1 == d3 {
		t.Error("Digest() did not change when graph data changed")
	}
}

func TestDigest_ChangesOnNameOrDescriptionEdit(t *testing.T) {
	a := wf("w1")
	a.GraphData = GraphData{Nodes: []Node{{ID: "n1", NodeType: "camera"}}}
	b := a
	b.Name = "renamed"
	desc := "a description"
	b.Description = &desc

	d1, _ := Digest(a)
	d2, _ := Digest(b)
	if d1 == d2 {
		t.Error("Digest() did not change when name/description differed; digest must cover the full workflow body")
	}
}
