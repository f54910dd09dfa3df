package main

import (
	"errors"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) (*Registry, *fakeStore, *fakeTransport) {
	t.Helper()
	store := newFakeStore()
	transport := &fakeTransport{}
	settings := GameSettings{
		Durations: PhaseDurations{Pre: time.Hour, Day: time.Hour, Night: time.Hour},
	}
	return NewRegistry(settings, store, transport, nil), store, transport
}

func TestRegistryCreateRegistersAndStarts(t *testing.T) {
	r, store, _ := newTestRegistry(t)

	g, err := r.Create("group-1", testUsers(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { r.Teardown(g.ID) })

	if r.Len() != 1 {
		t.Fatalf("registry holds %d sessions, want 1", r.Len())
	}
	got, err := r.Get(g.ID)
	if err != nil || got != g {
		t.Fatalf("Get(%s) = %v (%v)", g.ID, got, err)
	}

	store.mu.Lock()
	groupID, ok := store.sessions[g.ID]
	seated := len(store.players[g.ID])
	store.mu.Unlock()
	if !ok || groupID != "group-1" {
		t.Errorf("session row = %q (%v), want group-1", groupID, ok)
	}
	if seated != 10 {
		t.Errorf("%d players persisted, want 10", seated)
	}
}

func TestRegistryCreateRejectsBadCount(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	if _, err := r.Create("group-1", testUsers(3)); !errors.Is(err, ErrValidation) {
		t.Fatalf("Create with 3 users = %v, want ErrValidation", err)
	}
	if r.Len() != 0 {
		t.Error("failed creation left a session registered")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestRegistryTeardownRemovesSession(t *testing.T) {
	r, store, _ := newTestRegistry(t)

	g, err := r.Create("group-1", testUsers(10))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Teardown(g.ID); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("registry holds %d sessions after teardown, want 0", r.Len())
	}
	if got, ok := store.result(g.ID); !ok || got != ResultAbandoned {
		t.Errorf("persisted result = %s (%v), want abandoned", got, ok)
	}

	if err := r.Teardown(g.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second teardown = %v, want ErrNotFound", err)
	}
}

func TestRegistrySessionsAreIsolated(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	a, err := r.Create("group-1", testUsers(10))
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Create("group-2", testUsers(5))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		a.Teardown()
		b.Teardown()
	})

	if a.ID == b.ID {
		t.Fatal("two sessions share an id")
	}
	if r.Len() != 2 {
		t.Fatalf("registry holds %d sessions, want 2", r.Len())
	}

	r.Remove(a.ID)
	if _, err := r.Get(b.ID); err != nil {
		t.Errorf("removing one session lost the other: %v", err)
	}
}
