package scheduler

import (
	"log/slog"
	"testing"

	"eos/internal/actor"
	"eos/internal/eoserr"
	"eos/internal/object"
)

func newTestSystem() *System {
	return New(nil, nil, slog.Default(), MinTickMs)
}

const echoScript = `
fn handle(state, message) {
  return state
}
`

func TestSpawnIsVisibleImmediately(t *testing.T) {
	s := newTestSystem()
	id, err := s.Spawn(actor.Props{ID: "a1", Script: echoScript})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	views := s.List()
	if len(views) != 1 || views[0].ID != id {
		t.Fatalf("List() = %v, want one actor %q immediately after Spawn()", views, id)
	}
}

func TestDuplicateSpawnRejected(t *testing.T) {
	s := newTestSystem()
	if _, err := s.Spawn(actor.Props{ID: "dup", Script: echoScript}); err != nil {
		t.Fatalf("first Spawn() error = %v", err)
	}

	_, err := s.Spawn(actor.Props{ID: "dup", Script: echoScript})
	if err == nil {
		t.Fatal("expected an error spawning a duplicate id")
	}
	if eoserr.KindOf(err) != eoserr.IdAlreadyExists {
		t.Fatalf("KindOf() = %v, want %v", eoserr.KindOf(err), eoserr.IdAlreadyExists)
	}
}

func TestSendToUnknownActorIsSilentlyDropped(t *testing.T) {
	s := newTestSystem()
	if err := s.Send("x", "nobody", &object.Nil{}); err != nil {
		t.Fatalf("Send() to unknown recipient error = %v, want nil (silent drop)", err)
	}
}

func TestPausedActorDoesNotProcessMailbox(t *testing.T) {
	s := newTestSystem()
	s.Spawn(actor.Props{ID: "a1", Script: echoScript})
	s.TickNow()

	if err := s.Pause("a1"); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := s.AppendActorMailbox("a1", actor.Message{From: "x", To: "a1", Payload: &object.Nil{}}); err != nil {
		t.Fatalf("AppendActorMailbox() error = %v", err)
	}

	s.TickNow()

	mb, err := s.ActorMailbox("a1")
	if err != nil {
		t.Fatalf("ActorMailbox() error = %v", err)
	}
	if len(mb) != 1 {
		t.Fatalf("mailbox len = %d, want 1 (untouched while paused)", len(mb))
	}

	if err := s.Unpause("a1"); err != nil {
		t.Fatalf("Unpause() error = %v", err)
	}
	s.TickNow()

	mb, _ = s.ActorMailbox("a1")
	if len(mb) != 0 {
		t.Fatalf("mailbox len = %d after unpause tick, want 0", len(mb))
	}
}

func TestSystemPausedSkipsEntireTick(t *testing.T) {
	s := newTestSystem()
	s.Spawn(actor.Props{ID: "a1", Script: echoScript})
	s.AppendActorMailbox("a1", actor.Message{From: "x", To: "a1", Payload: &object.Nil{}})
	s.SetSystemPaused(true)

	s.TickNow()

	mb, _ := s.ActorMailbox("a1")
	if len(mb) != 1 {
		t.Fatalf("mailbox should be untouched while the system is paused, got len %d", len(mb))
	}

	s.SetSystemPaused(false)
	s.TickNow()

	mb, _ = s.ActorMailbox("a1")
	if len(mb) != 0 {
		t.Fatalf("mailbox should drain once the system is unpaused, got len %d", len(mb))
	}
}

func TestUnknownRecipientIsDroppedNotPanicked(t *testing.T) {
	s := newTestSystem()
	const sendToGhost = `
fn handle(state, message) {
  send("ghost", "boo")
  return state
}
`
	s.Spawn(actor.Props{ID: "a1", Script: sendToGhost})

	s.AppendActorMailbox("a1", actor.Message{From: "x", To: "a1", Payload: &object.Nil{}})
	s.TickNow() // handle() runs, enqueues to a1's own send queue
	s.TickNow() // send queue drained into routed, routed to "ghost" (dropped)

	if len(s.List()) != 1 {
		t.Fatalf("dropping an unroutable message must not affect actor set")
	}
}

func TestMessageRoundTripAcrossTicks(t *testing.T) {
	s := newTestSystem()
	const relay = `
fn handle(state, message) {
  send("b", message.payload)
  return state
}
`
	const recorder = `
fn handle(state, message) {
  return { "last": message.payload }
}
`
	s.Spawn(actor.Props{ID: "a", Script: relay})
	s.Spawn(actor.Props{ID: "b", Script: recorder})

	if err := s.Send("tester", "a", &object.String{Value: "ping"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	s.TickNow() // a.handle runs, enqueues send("b", "ping") on a's send queue
	s.TickNow() // a's send queue popped into routed, routed to b's mailbox at tick end
	s.TickNow() // b.handle runs against the delivered message

	state, err := s.ActorState("b")
	if err != nil {
		t.Fatalf("ActorState() error = %v", err)
	}
	m, ok := state.(*object.Map)
	if !ok {
		t.Fatalf("state = %v, want map", state)
	}
	last, ok := m.Get(&object.String{Value: "last"})
	if !ok {
		t.Fatal("expected \"last\" key in b's state")
	}
	if s, ok := last.(*object.String); !ok || s.Value != "ping" {
		t.Fatalf("last = %v, want \"ping\"", last)
	}
}

func TestKillRemovesActorAndOrder(t *testing.T) {
	s := newTestSystem()
	s.Spawn(actor.Props{ID: "a1", Script: echoScript})
	s.TickNow()

	if err := s.Kill("a1"); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatal("actor should be gone after Kill")
	}
	if err := s.Kill("a1"); err != nil {
		t.Fatalf("second Kill() of an already-gone actor error = %v, want nil (tolerated)", err)
	}
}

func TestSetTickMsEnforcesFloor(t *testing.T) {
	s := newTestSystem()
	if err := s.SetTickMs(50); eoserr.KindOf(err) != eoserr.InvalidInput {
		t.Fatalf("KindOf() = %v, want %v", eoserr.KindOf(err), eoserr.InvalidInput)
	}
	if err := s.SetTickMs(500); err != nil {
		t.Fatalf("SetTickMs(500) error = %v", err)
	}

	s.ResetTickMs()
	s.mu.RLock()
	got := s.tickMs
	s.mu.RUnlock()
	if got != DefaultTickMs {
		t.Fatalf("tickMs after reset = %d, want %d", got, DefaultTickMs)
	}
}
