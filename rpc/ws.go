package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"cardmarket/core/events"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 64
)

// EventPayload is the websocket rendering of a committed event.
type EventPayload struct {
	TxHash     string            `json:"txHash"`
	Sequence   uint64            `json:"sequence"`
	Index      int               `json:"index"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventHub fans committed events out to websocket subscribers. Emit never
// blocks: a subscriber that falls a full buffer behind misses events.
type EventHub struct {
	mu     sync.Mutex
	subs   map[chan EventPayload]string
	closed bool
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan EventPayload]string)}
}

// Emit implements events.Emitter.
func (h *EventHub) Emit(evt events.Event) {
	committed, ok := evt.(events.Committed)
	if !ok || committed.Evt == nil {
		return
	}
	payload := EventPayload{
		TxHash:     "0x" + hex.EncodeToString(committed.TxHash[:]),
		Sequence:   committed.Sequence,
		Index:      committed.Index,
		Type:       committed.Evt.Type,
		Attributes: committed.Evt.Attributes,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, prefix := range h.subs {
		if prefix != "" && !strings.HasPrefix(payload.Type, prefix) {
			continue
		}
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers a listener for events whose type starts with prefix.
func (h *EventHub) Subscribe(prefix string) (<-chan EventPayload, func()) {
	ch := make(chan EventPayload, subscriberBuffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = prefix
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Close disconnects every subscriber.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, prefix); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, prefix string) error {
	updates, cancel := s.hub.Subscribe(prefix)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, payload EventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
