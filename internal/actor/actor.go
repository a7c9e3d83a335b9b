// Package actor defines the EOS data model: actors, messages, and
// spawn props (spec section 2).
package actor

import (
	"crypto/rand"
	"encoding/base64"

	"eos/internal/object"
)

// Message is an envelope routed between actors (spec section 2). From
// is empty for messages the system or an operator injects directly.
type Message struct {
	From    string
	To      string
	Payload object.Object
}

// Props describes how to spawn an actor (spec section 2). ID is
// optional; when empty the scheduler generates one.
type Props struct {
	ID     string
	Script string
}

// Actor is one running script instance: its mailbox and send queue are
// plain FIFOs drained at most one item per tick (spec section 4.3).
type Actor struct {
	ID     string
	Script string
	State  object.Object

	Mailbox   []Message
	SendQueue []Message

	Paused bool
}

func NewActor(id, script string, initialState object.Object) *Actor {
	return &Actor{ID: id, Script: script, State: initialState}
}

// PopMailbox removes and returns the oldest mailbox message, if any.
func (a *Actor) PopMailbox() (Message, bool) {
	if len(a.Mailbox) == 0 {
		return Message{}, false
	}
	m := a.Mailbox[0]
	a.Mailbox = a.Mailbox[1:]
	return m, true
}

// PopSendQueue removes and returns the oldest pending outbound message,
// if any.
func (a *Actor) PopSendQueue() (Message, bool) {
	if len(a.SendQueue) == 0 {
		return Message{}, false
	}
	m := a.SendQueue[0]
	a.SendQueue = a.SendQueue[1:]
	return m, true
}

func (a *Actor) EnqueueMailbox(m Message)   { a.Mailbox = append(a.Mailbox, m) }
func (a *Actor) EnqueueSendQueue(m Message) { a.SendQueue = append(a.SendQueue, m) }

// NewID generates a URL-safe identifier 16 characters long, inside the
// 12-21 character range spec.md requires. No library in the dependency
// set below produces this exact shape (uuid.New is 36 characters with
// hyphens), so it is hand-rolled from crypto/rand.
func NewID() string {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err) // crypto/rand failing means the OS entropy source is broken
	}
	return base64.RawURLEncoding.EncodeToString(buf[:])
}
