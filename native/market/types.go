package market

import "fmt"

// Status is the lifecycle state of a listing.
type Status uint8

const (
	StatusInactive Status = iota
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusActive:
		return "active"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether the status is a known value.
func (s Status) Valid() bool { return s == StatusInactive || s == StatusActive }

// TradeAction identifies the transition recorded in a trade event.
type TradeAction uint8

const (
	ActionList TradeAction = iota
	ActionUpdatePrice
	ActionPurchase
	ActionCancel
)

func (a TradeAction) String() string {
	switch a {
	case ActionList:
		return "list"
	case ActionUpdatePrice:
		return "update_price"
	case ActionPurchase:
		return "purchase"
	case ActionCancel:
		return "cancel"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

func (a TradeAction) Valid() bool { return a <= ActionCancel }

// HistoryCapacity is the number of trade events reserved per listing.
const HistoryCapacity = 16

// TradeEvent is one immutable entry of a listing's history.
type TradeEvent struct {
	Price     uint64
	Timestamp int64
	Action    TradeAction
}

// Listing is the single sale record kept for an asset. It lives at the
// address derived from the asset and is reused across relist cycles.
type Listing struct {
	Status    Status
	Seller    [20]byte
	Asset     [32]byte
	Price     uint64
	CreatedAt int64
	History   []TradeEvent
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.History != nil {
		clone.History = append([]TradeEvent(nil), l.History...)
	}
	return &clone
}

// Active reports whether the listing can be purchased.
func (l *Listing) Active() bool {
	return l != nil && l.Status == StatusActive
}

// LastEvent returns the most recent history entry.
func (l *Listing) LastEvent() (TradeEvent, bool) {
	if l == nil || len(l.History) == 0 {
		return TradeEvent{}, false
	}
	return l.History[len(l.History)-1], true
}
