package events

import (
	"testing"

	"cardmarket/core/types"
)

type recorder struct{ got []Event }

func (r *recorder) Emit(evt Event) { r.got = append(r.got, evt) }

func TestFanoutDeliversToEveryEmitter(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	fan := Fanout{a, nil, b}
	fan.Emit(Envelope{Evt: &types.Event{Type: "market.listed"}})
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("expected both emitters to receive the event, got %d and %d", len(a.got), len(b.got))
	}
	payload, ok := Payload(b.got[0])
	if !ok || payload.Type != "market.listed" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPayloadRejectsEmptyEnvelope(t *testing.T) {
	if _, ok := Payload(Envelope{}); ok {
		t.Fatalf("empty envelope should not yield a payload")
	}
	if _, ok := Payload(nil); ok {
		t.Fatalf("nil event should not yield a payload")
	}
}
