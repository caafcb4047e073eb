package presence

import (
	"fmt"
	"sync"
	"testing"

	"socialmart/internal/models"
)

func TestRegistry_IdempotentRegister(t *testing.T) {
	r := NewRegistry()

	if !r.Register("u1", "c1") {
		t.Error("first Register should report a new entry")
	}
	if r.Register("u1", "c1") {
		t.Error("second Register of the same pair should be a no-op")
	}

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 entry, got %d: %v", len(snap), snap)
	}
	if snap[0] != (models.PresenceEntry{UserID: "u1", ConnectionID: "c1"}) {
		t.Errorf("unexpected entry %+v", snap[0])
	}
}

func TestRegistry_MultipleConnections(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1")
	r.Register("u1", "c2")
	r.Register("u2", "c3")

	if got := r.OnlineUsers(); len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Errorf("unexpected online users %v", got)
	}

	// Closing one tab keeps the user online.
	if user, ok := r.Unregister("c1"); !ok || user != "u1" {
		t.Errorf("Unregister returned (%q, %v)", user, ok)
	}
	if !r.IsOnline("u1") {
		t.Error("u1 should still be online through c2")
	}

	r.Unregister("c2")
	if r.IsOnline("u1") {
		t.Error("u1 should be offline after its last connection left")
	}
	if !r.IsOnline("u2") {
		t.Error("u2 should be unaffected")
	}
}

func TestRegistry_UnregisterUnknown(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Unregister("nope"); ok {
		t.Error("Unregister of unknown connection should report false")
	}

	r.Register("u1", "c1")
	r.Unregister("c1")
	if _, ok := r.Unregister("c1"); ok {
		t.Error("double Unregister should report false")
	}
	if len(r.Snapshot()) != 0 {
		t.Error("snapshot should be empty")
	}
}

func TestRegistry_ReRegisterMovesConnection(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1")
	if !r.Register("u2", "c1") {
		t.Error("moving a connection to another user should report a change")
	}
	if r.IsOnline("u1") {
		t.Error("u1 should no longer own c1")
	}
	if !r.IsOnline("u2") {
		t.Error("u2 should own c1")
	}
}

func TestRegistry_SnapshotOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("b", "2")
	r.Register("a", "9")
	r.Register("b", "1")

	want := []models.PresenceEntry{
		{UserID: "a", ConnectionID: "9"},
		{UserID: "b", ConnectionID: "1"},
		{UserID: "b", ConnectionID: "2"},
	}
	got := r.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Go(func() {
			conn := fmt.Sprintf("c%d", i)
			user := fmt.Sprintf("u%d", i%5)
			r.Register(user, conn)
			_ = r.IsOnline(user)
			_ = r.Snapshot()
			r.Unregister(conn)
		})
	}
	wg.Wait()

	if n := len(r.Snapshot()); n != 0 {
		t.Errorf("expected empty registry, got %d entries", n)
	}
}
