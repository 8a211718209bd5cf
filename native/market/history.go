package market

// Slots a transition must find free. Opening transitions keep one slot in
// reserve so an active listing can always be cancelled or purchased.
const (
	openingSlots = 2
	closingSlots = 1
)

// ensureHistoryRoom rejects a transition whose trade events would not fit in
// the reserved slots. It runs before any mutation.
func ensureHistoryRoom(l *Listing, needed int) error {
	if HistoryRemaining(l) < needed {
		return ErrHistoryFull
	}
	return nil
}

// appendHistory records a transition. Entries are only ever appended.
func appendHistory(l *Listing, action TradeAction, price uint64, now int64) error {
	if err := ensureHistoryRoom(l, 1); err != nil {
		return err
	}
	if l.History == nil {
		l.History = make([]TradeEvent, 0, HistoryCapacity)
	}
	l.History = append(l.History, TradeEvent{Price: price, Timestamp: now, Action: action})
	return nil
}

// HistoryRemaining reports how many trade events the listing can still
// record.
func HistoryRemaining(l *Listing) int {
	if l == nil {
		return HistoryCapacity
	}
	return HistoryCapacity - len(l.History)
}
