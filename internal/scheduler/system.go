// Package scheduler implements the EOS tick-driven runtime: a single
// System type holding every actor, drained by one cooperative tick
// loop under one reader/writer lock (spec sections 4.2, 4.3, 5).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"eos/internal/actor"
	"eos/internal/eoserr"
	"eos/internal/kvstore"
	"eos/internal/object"
	"eos/internal/script"
	"eos/internal/telemetry"
)

const (
	DefaultTickMs = 2000
	MinTickMs     = 100
)

// System owns every actor and the single writer lock contending scripts,
// the control RPC, and the 9P overlay all acquire (spec section 5).
type System struct {
	mu sync.RWMutex

	actors map[string]*actor.Actor
	order  []string // stable spawn order, iterated every tick

	spawnQueue []actor.Props
	paused     bool
	tickMs     int

	kv        *kvstore.Store
	telemetry *telemetry.Emitter
	log       *slog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(kv *kvstore.Store, tel *telemetry.Emitter, log *slog.Logger, tickMs int) *System {
	if tickMs < MinTickMs {
		tickMs = DefaultTickMs
	}
	return &System{
		actors: make(map[string]*actor.Actor),
		tickMs: tickMs,
		kv:     kv,
		telemetry: tel,
		log:    log,
		stop:   make(chan struct{}),
	}
}

// Run starts the tick timer loop; it blocks until Shutdown is called.
func (s *System) Run() {
	s.wg.Add(1)
	defer s.wg.Done()
	for {
		s.mu.RLock()
		interval := time.Duration(s.tickMs) * time.Millisecond
		s.mu.RUnlock()

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
			s.Tick()
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

func (s *System) Shutdown() {
	close(s.stop)
	s.wg.Wait()
	if s.kv != nil {
		_ = s.kv.Close()
	}
}

// Tick runs exactly one scheduling pass (spec section 4.3).
func (s *System) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return
	}

	s.drainSpawnQueueLocked()

	var routed []actor.Message

	for _, id := range s.order {
		a, ok := s.actors[id]
		if !ok || a.Paused {
			continue
		}

		if m, ok := a.PopSendQueue(); ok {
			routed = append(routed, m)
		}

		if m, ok := a.PopMailbox(); ok {
			s.runHandleLocked(a, m, &routed)
		}
	}

	for _, m := range routed {
		s.routeLocked(m)
	}
}

func (s *System) drainSpawnQueueLocked() {
	queue := s.spawnQueue
	s.spawnQueue = nil

	for _, props := range queue {
		if _, exists := s.actors[props.ID]; exists {
			s.log.Warn("spawn skipped: id already exists", slog.String("id", props.ID))
			continue
		}
		if err := s.spawnLocked(props); err != nil {
			s.log.Warn("spawn skipped: script init failed",
				slog.String("id", props.ID), slog.Any("error", err))
		}
	}
}

// spawnLocked runs the script's init and inserts the resulting actor,
// assuming the caller already holds s.mu and has checked for an id
// collision.
func (s *System) spawnLocked(props actor.Props) error {
	host := &actorHost{sys: s, actorID: props.ID}
	state, err := script.RunInit(host, props.Script)
	if err != nil {
		return eoserr.Wrap(eoserr.ScriptRuntime, "script init failed", err)
	}

	a := actor.NewActor(props.ID, props.Script, state)
	s.actors[props.ID] = a
	s.order = append(s.order, props.ID)
	s.telemetry.Plot("system.actor.spawned:1")
	s.log.Info("actor spawned", slog.String("id", props.ID))
	return nil
}

func (s *System) runHandleLocked(a *actor.Actor, m actor.Message, routed *[]actor.Message) {
	host := &actorHost{sys: s, actorID: a.ID}
	payload := messageToObject(m)

	result, err := script.RunHandle(host, a.Script, a.State, payload)
	if err != nil {
		s.log.Warn("handler failed, state unchanged",
			slog.String("id", a.ID), slog.Any("error", err))
		return
	}

	a.State = result.State
	if result.HasReply && m.From != "" {
		*routed = append(*routed, actor.Message{From: a.ID, To: m.From, Payload: result.Response})
	}
}

func (s *System) routeLocked(m actor.Message) {
	recipient, ok := s.actors[m.To]
	if !ok {
		s.telemetry.Plot("system.message.dropped:1")
		s.log.Warn("message dropped: unknown recipient", slog.String("to", m.To))
		return
	}
	recipient.EnqueueMailbox(m)
}

func messageToObject(m actor.Message) object.Object {
	mp := object.NewMap()
	if m.From != "" {
		mp.Put(&object.String{Value: "from"}, &object.String{Value: m.From})
	}
	mp.Put(&object.String{Value: "to"}, &object.String{Value: m.To})
	mp.Put(&object.String{Value: "payload"}, m.Payload)
	return mp
}

// --- operator-facing procedures (spec section 4.2) ---

// Spawn runs the actor's init script and inserts it into the actor
// table synchronously, so it is visible to List()/Send() as soon as
// Spawn returns (spec section 3: "An actor is created when a spawn RPC
// arrives ... it immediately executes init and is inserted into
// actors"). The spawn queue is reserved for the script-initiated spawn
// host function, not for this path.
func (s *System) Spawn(props actor.Props) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if props.ID == "" {
		props.ID = actor.NewID()
	}
	if _, exists := s.actors[props.ID]; exists {
		return "", eoserr.New(eoserr.IdAlreadyExists, fmt.Sprintf("actor %q already exists", props.ID))
	}

	if err := s.spawnLocked(props); err != nil {
		return "", err
	}
	return props.ID, nil
}

type ActorView struct {
	ID        string
	Paused    bool
	Mailbox   int
	SendQueue int
}

func (s *System) List() []ActorView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]ActorView, 0, len(s.order))
	for _, id := range s.order {
		a := s.actors[id]
		views = append(views, ActorView{ID: a.ID, Paused: a.Paused, Mailbox: len(a.Mailbox), SendQueue: len(a.SendQueue)})
	}
	return views
}

// Send delivers a message immediately, outside the tick loop. An
// unknown recipient is dropped silently (spec sections 3, 7): the
// caller always sees success.
func (s *System) Send(from, to string, payload object.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipient, ok := s.actors[to]
	if !ok {
		s.telemetry.Plot("system.message.dropped:1")
		s.log.Warn("message dropped: unknown recipient", slog.String("to", to))
		return nil
	}
	recipient.EnqueueMailbox(actor.Message{From: from, To: to, Payload: payload})
	return nil
}

func (s *System) Pause(id string) error  { return s.setPaused(id, true) }
func (s *System) Unpause(id string) error { return s.setPaused(id, false) }

// setPaused tolerates an unknown id: spec section 4.3 treats pause/
// unpause of a nonexistent actor as a no-op, logged but not an error.
func (s *System) setPaused(id string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors[id]
	if !ok {
		s.log.Warn("pause/unpause on unknown actor ignored", slog.String("id", id))
		return nil
	}
	a.Paused = paused
	return nil
}

// Kill tolerates an unknown id (spec section 4.3, section 7: kill on a
// nonexistent actor is tolerated and logged, not an error).
func (s *System) Kill(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actors[id]; !ok {
		s.log.Warn("kill of unknown actor ignored", slog.String("id", id))
		return nil
	}
	delete(s.actors, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *System) TickNow() {
	s.Tick()
}

func (s *System) SetTickMs(ms int) error {
	if ms < MinTickMs {
		return eoserr.InvalidInputf("tick_ms must be >= %d", MinTickMs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickMs = ms
	return nil
}

func (s *System) ResetTickMs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickMs = DefaultTickMs
}

func (s *System) SetSystemPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

func (s *System) SystemPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// --- actor-facing view onto the shared store, used by the vfs overlay ---

func (s *System) ActorState(id string) (object.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	if !ok {
		return nil, eoserr.NotFoundf("actor %q not found", id)
	}
	return a.State, nil
}

func (s *System) SetActorState(id string, state object.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return eoserr.NotFoundf("actor %q not found", id)
	}
	a.State = state
	return nil
}

func (s *System) ActorScript(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	if !ok {
		return "", eoserr.NotFoundf("actor %q not found", id)
	}
	return a.Script, nil
}

func (s *System) SetActorScript(id string, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return eoserr.NotFoundf("actor %q not found", id)
	}
	a.Script = script
	return nil
}

func (s *System) ActorMailbox(id string) ([]actor.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	if !ok {
		return nil, eoserr.NotFoundf("actor %q not found", id)
	}
	return append([]actor.Message(nil), a.Mailbox...), nil
}

func (s *System) AppendActorMailbox(id string, m actor.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return eoserr.NotFoundf("actor %q not found", id)
	}
	a.EnqueueMailbox(m)
	return nil
}

// SetActorMailbox replaces an actor's mailbox wholesale, backing a
// write to /actors/{id}/mailbox (spec section 4.4 commit table).
func (s *System) SetActorMailbox(id string, msgs []actor.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return eoserr.NotFoundf("actor %q not found", id)
	}
	a.Mailbox = append([]actor.Message(nil), msgs...)
	return nil
}

func (s *System) ActorPaused(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	if !ok {
		return false, eoserr.NotFoundf("actor %q not found", id)
	}
	return a.Paused, nil
}

func (s *System) ActorIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *System) KVStore() *kvstore.Store { return s.kv }

// PendingSpawns returns the actors queued for creation at the next
// tick, backing the read-only /spawn_queue overlay path.
func (s *System) PendingSpawns() []actor.Props {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]actor.Props(nil), s.spawnQueue...)
}

// actorHost implements script.Host for one handler invocation. store/
// load/delete/exists pass the bucket named by the script straight to the
// kvstore; buckets are not scoped per actor, so actors that name the same
// bucket share its keys. `send` pushes onto the invoking actor's send
// queue; a later tick pops it (at most one entry per tick) and routes it
// at the end of that tick (spec section 4.1).
type actorHost struct {
	sys     *System
	actorID string
}

func (h *actorHost) Send(to string, payload object.Object) {
	if a, ok := h.sys.actors[h.actorID]; ok {
		a.EnqueueSendQueue(actor.Message{From: h.actorID, To: to, Payload: payload})
	}
}

func (h *actorHost) Store(bucket, key string, value object.Object) error {
	if h.sys.kv == nil {
		return fmt.Errorf("kvstore not configured")
	}
	return h.sys.kv.Store(context.Background(), bucket, key, value)
}

func (h *actorHost) Load(bucket, key string) (object.Object, bool, error) {
	if h.sys.kv == nil {
		return nil, false, fmt.Errorf("kvstore not configured")
	}
	return h.sys.kv.Load(context.Background(), bucket, key)
}

func (h *actorHost) Delete(bucket, key string) error {
	if h.sys.kv == nil {
		return fmt.Errorf("kvstore not configured")
	}
	return h.sys.kv.Delete(context.Background(), bucket, key)
}

func (h *actorHost) Exists(bucket, key string) (bool, error) {
	if h.sys.kv == nil {
		return false, fmt.Errorf("kvstore not configured")
	}
	return h.sys.kv.Exists(context.Background(), bucket, key)
}

func (h *actorHost) Plot(line string) {
	h.sys.telemetry.Plot(line)
}
