package events

import "cardmarket/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Envelope wraps a generic event so modules can emit it.
type Envelope struct {
	Evt *types.Event
}

func (e Envelope) EventType() string {
	if e.Evt == nil {
		return ""
	}
	return e.Evt.Type
}

func (e Envelope) Event() *types.Event { return e.Evt }

// Payload extracts the generic rendering of an event when it has one.
func Payload(evt Event) (*types.Event, bool) {
	if evt == nil {
		return nil, false
	}
	typed, ok := evt.(interface{ Event() *types.Event })
	if !ok || typed.Event() == nil {
		return nil, false
	}
	return typed.Event(), true
}

// Fanout delivers each event to every configured emitter in order.
type Fanout []Emitter

func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Committed is an event of a committed transaction, as delivered to sinks.
type Committed struct {
	TxHash   [32]byte
	Sequence uint64
	Index    int
	Evt      *types.Event
}

func (c Committed) EventType() string {
	if c.Evt == nil {
		return ""
	}
	return c.Evt.Type
}

func (c Committed) Event() *types.Event { return c.Evt }
