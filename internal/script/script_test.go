package script

import (
	"testing"

	"eos/internal/dec64"
	"eos/internal/object"
)

// fakeHost records calls made by script handlers via the host builtins.
type fakeHost struct {
	sent      []Message
	stored    map[string]object.Object
	plotted   []string
	loadErr   error
	existsVal bool
}

type Message struct {
	To      string
	Payload object.Object
}

func newFakeHost() *fakeHost {
	return &fakeHost{stored: map[string]object.Object{}}
}

func (h *fakeHost) Send(to string, payload object.Object) {
	h.sent = append(h.sent, Message{To: to, Payload: payload})
}

func (h *fakeHost) Store(bucket, key string, value object.Object) error {
	h.stored[bucket+"/"+key] = value
	return nil
}

func (h *fakeHost) Load(bucket, key string) (object.Object, bool, error) {
	v, ok := h.stored[bucket+"/"+key]
	return v, ok, h.loadErr
}

func (h *fakeHost) Delete(bucket, key string) error {
	delete(h.stored, bucket+"/"+key)
	return nil
}

func (h *fakeHost) Exists(bucket, key string) (bool, error) {
	_, ok := h.stored[bucket+"/"+key]
	return ok, nil
}

func (h *fakeHost) Plot(line string) {
	h.plotted = append(h.plotted, line)
}

func TestRunInitDefaultsToEmptyMap(t *testing.T) {
	state, err := RunInit(newFakeHost(), `fn handle(state, message) { return state }`)
	if err != nil {
		t.Fatalf("RunInit() error = %v", err)
	}
	m, ok := state.(*object.Map)
	if !ok || len(m.Keys()) != 0 {
		t.Fatalf("state = %v, want empty map", state)
	}
}

func TestRunInitCallsInit(t *testing.T) {
	src := `
fn init() {
  return { "count": 0 }
}
fn handle(state, message) {
  return state
}
`
	state, err := RunInit(newFakeHost(), src)
	if err != nil {
		t.Fatalf("RunInit() error = %v", err)
	}
	m, ok := state.(*object.Map)
	if !ok {
		t.Fatalf("state = %v, want map", state)
	}
	v, ok := m.Get(&object.String{Value: "count"})
	if !ok || v.(*object.Number).Value.ToInt() != 0 {
		t.Fatalf("count = %v", v)
	}
}

func TestMapLiteralVsBlockStatementDisambiguation(t *testing.T) {
	// A brace in statement position at the top of a function body is a
	// block; the same brace as an expression is a map literal.
	src := `
fn handle(state, message) {
  val x = { "a": 1, "b": 2 }
  return x
}
`
	host := newFakeHost()
	result, err := RunHandle(host, src, object.NewMap(), &object.Nil{})
	if err != nil {
		t.Fatalf("RunHandle() error = %v", err)
	}
	m, ok := result.State.(*object.Map)
	if !ok || len(m.Keys()) != 2 {
		t.Fatalf("state = %v, want 2-entry map", result.State)
	}
}

func TestRunHandleBareStateReturn(t *testing.T) {
	src := `
fn handle(state, message) {
  return state
}
`
	in := object.NewMap()
	in.Put(&object.String{Value: "x"}, &object.Number{Value: dec64.FromInt(1)})
	result, err := RunHandle(newFakeHost(), src, in, &object.Nil{})
	if err != nil {
		t.Fatalf("RunHandle() error = %v", err)
	}
	if result.HasReply {
		t.Fatalf("expected no reply for bare state return")
	}
	if result.State != in {
		t.Fatalf("state not passed through unchanged")
	}
}

func TestRunHandleTupleReturnProducesReply(t *testing.T) {
	src := `
fn handle(state, message) {
  return [state, "pong"]
}
`
	result, err := RunHandle(newFakeHost(), src, object.NewMap(), &object.Nil{})
	if err != nil {
		t.Fatalf("RunHandle() error = %v", err)
	}
	if !result.HasReply {
		t.Fatalf("expected reply from 2-element tuple return")
	}
	resp, ok := result.Response.(*object.String)
	if !ok || resp.Value != "pong" {
		t.Fatalf("response = %v, want \"pong\"", result.Response)
	}
}

func TestHostSendBuiltin(t *testing.T) {
	src := `
fn handle(state, message) {
  send("other", "hi")
  return state
}
`
	host := newFakeHost()
	_, err := RunHandle(host, src, object.NewMap(), &object.Nil{})
	if err != nil {
		t.Fatalf("RunHandle() error = %v", err)
	}
	if len(host.sent) != 1 || host.sent[0].To != "other" {
		t.Fatalf("sent = %v, want one message to other", host.sent)
	}
	payload, ok := host.sent[0].Payload.(*object.String)
	if !ok || payload.Value != "hi" {
		t.Fatalf("payload = %v, want hi", host.sent[0].Payload)
	}
}

func TestHostStoreLoadDeleteExistsBuiltins(t *testing.T) {
	src := `
fn handle(state, message) {
  store("b", "k", "v")
  val found1 = exists("b", "k")
  val v = load("b", "k")
  delete("b", "k")
  val found2 = exists("b", "k")
  return [state, [found1, v, found2]]
}
`
	host := newFakeHost()
	result, err := RunHandle(host, src, object.NewMap(), &object.Nil{})
	if err != nil {
		t.Fatalf("RunHandle() error = %v", err)
	}
	lst, ok := result.Response.(*object.List)
	if !ok || len(lst.Elements) != 3 {
		t.Fatalf("response = %v, want 3-element list", result.Response)
	}
	if b, ok := lst.Elements[0].(*object.Boolean); !ok || !b.Value {
		t.Fatalf("found1 = %v, want true", lst.Elements[0])
	}
	if s, ok := lst.Elements[1].(*object.String); !ok || s.Value != "v" {
		t.Fatalf("val = %v, want v", lst.Elements[1])
	}
	if b, ok := lst.Elements[2].(*object.Boolean); !ok || b.Value {
		t.Fatalf("found2 = %v, want false", lst.Elements[2])
	}
}

func TestHostPlotBuiltin(t *testing.T) {
	src := `
fn handle(state, message) {
  plot("custom.metric:1")
  return state
}
`
	host := newFakeHost()
	_, err := RunHandle(host, src, object.NewMap(), &object.Nil{})
	if err != nil {
		t.Fatalf("RunHandle() error = %v", err)
	}
	if len(host.plotted) != 1 || host.plotted[0] != "custom.metric:1" {
		t.Fatalf("plotted = %v", host.plotted)
	}
}

func TestNumberArithmeticAndComparison(t *testing.T) {
	src := `
fn handle(state, message) {
  val a = 3 + 4 * 2
  val b = a > 10
  return [state, [a, b]]
}
`
	result, err := RunHandle(newFakeHost(), src, object.NewMap(), &object.Nil{})
	if err != nil {
		t.Fatalf("RunHandle() error = %v", err)
	}
	lst := result.Response.(*object.List)
	num, ok := lst.Elements[0].(*object.Number)
	if !ok || num.Value.ToInt() != 11 {
		t.Fatalf("a = %v, want 11", lst.Elements[0])
	}
	b, ok := lst.Elements[1].(*object.Boolean)
	if !ok || !b.Value {
		t.Fatalf("b = %v, want true", lst.Elements[1])
	}
}

func TestRunHandleCompileError(t *testing.T) {
	_, err := RunHandle(newFakeHost(), `fn handle(state, message) { return`, object.NewMap(), &object.Nil{})
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if _, ok := err.(*EvalError); !ok {
		t.Fatalf("error type = %T, want *EvalError", err)
	}
}

func TestRunHandleRuntimeError(t *testing.T) {
	src := `
fn handle(state, message) {
  return undefined_identifier
}
`
	_, err := RunHandle(newFakeHost(), src, object.NewMap(), &object.Nil{})
	if err == nil {
		t.Fatal("expected a runtime error for an unknown identifier")
	}
}

func TestMissingHandleFunctionErrors(t *testing.T) {
	_, err := RunHandle(newFakeHost(), `fn other() { return 1 }`, object.NewMap(), &object.Nil{})
	if err == nil {
		t.Fatal("expected an error when handle is undefined")
	}
}
