package rooms

import (
	"testing"

	"socialmart/internal/models"
)

func drain(ch <-chan models.ServerEvent) []models.ServerEvent {
	var out []models.ServerEvent
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRouter_RoomIsolation(t *testing.T) {
	r := NewRouter()
	a := r.Attach("ca", 10)
	b := r.Attach("cb", 10)
	r.Join("ca", "A")
	r.Join("cb", "B")

	if n := r.EmitToRoom("A", "ping", "x"); n != 1 {
		t.Errorf("expected 1 delivery, got %d", n)
	}

	if got := drain(a); len(got) != 1 || got[0].Event != "ping" || got[0].Data != "x" {
		t.Errorf("room A connection got %v", got)
	}
	if got := drain(b); len(got) != 0 {
		t.Errorf("room B connection must not receive room A events, got %v", got)
	}
}

func TestRouter_MultipleConnectionsPerRoom(t *testing.T) {
	r := NewRouter()
	tab1 := r.Attach("t1", 10)
	tab2 := r.Attach("t2", 10)
	r.Join("t1", "user")
	r.Join("t2", "user")

	if n := r.EmitToRoom("user", "hello", nil); n != 2 {
		t.Errorf("expected 2 deliveries, got %d", n)
	}
	if len(drain(tab1)) != 1 || len(drain(tab2)) != 1 {
		t.Error("both tabs should receive the event")
	}
}

func TestRouter_EmptyRoomIsSilent(t *testing.T) {
	r := NewRouter()
	if n := r.EmitToRoom("nobody", "ping", nil); n != 0 {
		t.Errorf("expected 0 deliveries, got %d", n)
	}
}

func TestRouter_DetachCleansUp(t *testing.T) {
	r := NewRouter()
	ch := r.Attach("c1", 10)
	r.Join("c1", "x")
	r.Join("c1", "y")

	r.Detach("c1")

	if _, ok := <-ch; ok {
		t.Error("sink should be closed after Detach")
	}
	if r.Members("x") != 0 || r.Members("y") != 0 {
		t.Error("rooms should be empty after Detach")
	}
	if n := r.EmitToRoom("x", "ping", nil); n != 0 {
		t.Errorf("emit after detach should be a no-op, got %d", n)
	}
	if r.Join("c1", "x") {
		t.Error("Join of a detached connection should fail")
	}

	// Second detach is a no-op.
	r.Detach("c1")
}

func TestRouter_Leave(t *testing.T) {
	r := NewRouter()
	ch := r.Attach("c1", 10)
	r.Join("c1", "x")
	r.Leave("c1", "x")

	r.EmitToRoom("x", "ping", nil)
	if got := drain(ch); len(got) != 0 {
		t.Errorf("expected nothing after Leave, got %v", got)
	}
}

func TestRouter_FullSinkDrops(t *testing.T) {
	r := NewRouter()
	ch := r.Attach("c1", 1)
	r.Join("c1", "x")

	if n := r.EmitToRoom("x", "first", nil); n != 1 {
		t.Fatalf("expected first event delivered, got %d", n)
	}
	if n := r.EmitToRoom("x", "second", nil); n != 0 {
		t.Errorf("expected second event dropped, got %d", n)
	}
	if got := drain(ch); len(got) != 1 || got[0].Event != "first" {
		t.Errorf("unexpected events %v", got)
	}
}

func TestRouter_BroadcastToAll(t *testing.T) {
	r := NewRouter()
	a := r.Attach("a", 10)
	b := r.Attach("b", 10)
	r.Join("a", "room")

	if n := r.BroadcastToAll("presence", []string{"u"}); n != 2 {
		t.Errorf("expected 2 deliveries, got %d", n)
	}
	if len(drain(a)) != 1 || len(drain(b)) != 1 {
		t.Error("broadcast should reach joined and unjoined connections")
	}
}

func TestRouter_AttachTwiceReturnsSameSink(t *testing.T) {
	r := NewRouter()
	first := r.Attach("c1", 10)
	second := r.Attach("c1", 10)
	if first != second {
		t.Error("expected the same sink")
	}
}
