package state

import (
	"sync"
	"testing"
)

func TestMemoryManagerDefaults(t *testing.T) {
	m := NewMemoryManager()
	if got := m.GetState(1); got != StateIdle {
		t.Fatalf("fresh user state = %q, want %q", got, StateIdle)
	}
	if m.InProgress(1) {
		t.Fatal("fresh user should not be in progress")
	}
	if _, ok := m.GetField(1, "name"); ok {
		t.Fatal("fresh user should have no fields")
	}
}

func TestMemoryManagerLifecycle(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(7, State("waiting"))
	m.SetField(7, "name", "Alice")

	if !m.InProgress(7) {
		t.Fatal("user should be in progress")
	}
	if v, ok := m.GetField(7, "name"); !ok || v != "Alice" {
		t.Fatalf("GetField = %q/%v, want Alice/true", v, ok)
	}

	fields := m.Fields(7)
	fields["name"] = "mutated"
	if v, _ := m.GetField(7, "name"); v != "Alice" {
		t.Fatal("Fields must return a copy")
	}

	m.Clear(7)
	if m.InProgress(7) {
		t.Fatal("cleared user should not be in progress")
	}
	if got := m.GetState(7); got != StateIdle {
		t.Fatalf("cleared user state = %q, want idle", got)
	}
}

func TestMemoryManagerIsolation(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, State("a"))
	m.SetState(2, State("b"))
	m.SetField(1, "k", "one")
	m.SetField(2, "k", "two")

	if v, _ := m.GetField(1, "k"); v != "one" {
		t.Fatalf("user 1 field = %q, want one", v)
	}
	if v, _ := m.GetField(2, "k"); v != "two" {
		t.Fatalf("user 2 field = %q, want two", v)
	}

	m.Clear(1)
	if m.InProgress(1) {
		t.Fatal("user 1 should be cleared")
	}
	if !m.InProgress(2) {
		t.Fatal("user 2 must be untouched")
	}
}

func TestMemoryManagerConcurrentAccess(t *testing.T) {
	m := NewMemoryManager()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.SetState(id, State("busy"))
			m.SetField(id, "k", "v")
			_ = m.GetState(id)
			_ = m.Fields(id)
			m.Clear(id)
		}(int64(i))
	}
	wg.Wait()
}
