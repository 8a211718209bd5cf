package market

import (
	"encoding/binary"
	"fmt"
)

// Persisted layout, all integers big-endian:
//
//	version(1) status(1) seller(20) asset(32) price(8) createdAt(8) count(1)
//	followed by HistoryCapacity slots of price(8) timestamp(8) action(1).
//
// Every slot is written, used or not, so the record has a fixed size from
// the moment the listing is created.
const (
	codecVersion    = 1
	headerSize      = 1 + 1 + 20 + 32 + 8 + 8 + 1
	eventRecordSize = 8 + 8 + 1
	// EncodedListingSize is the byte size of every stored listing.
	EncodedListingSize = headerSize + HistoryCapacity*eventRecordSize
)

// EncodeListing serialises the listing into its fixed-width record.
func EncodeListing(l *Listing) ([]byte, error) {
	if l == nil {
		return nil, fmt.Errorf("market codec: nil listing")
	}
	if !l.Status.Valid() {
		return nil, fmt.Errorf("market codec: invalid status %d", l.Status)
	}
	if len(l.History) > HistoryCapacity {
		return nil, ErrHistoryFull
	}
	buf := make([]byte, EncodedListingSize)
	buf[0] = codecVersion
	buf[1] = byte(l.Status)
	off := 2
	off += copy(buf[off:], l.Seller[:])
	off += copy(buf[off:], l.Asset[:])
	binary.BigEndian.PutUint64(buf[off:], l.Price)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(l.CreatedAt))
	off += 8
	buf[off] = byte(len(l.History))
	off++
	for _, evt := range l.History {
		if !evt.Action.Valid() {
			return nil, fmt.Errorf("market codec: invalid action %d", evt.Action)
		}
		binary.BigEndian.PutUint64(buf[off:], evt.Price)
		binary.BigEndian.PutUint64(buf[off+8:], uint64(evt.Timestamp))
		buf[off+16] = byte(evt.Action)
		off += eventRecordSize
	}
	return buf, nil
}

// DecodeListing parses a record produced by EncodeListing.
func DecodeListing(raw []byte) (*Listing, error) {
	if len(raw) != EncodedListingSize {
		return nil, fmt.Errorf("market codec: record is %d bytes, want %d", len(raw), EncodedListingSize)
	}
	if raw[0] != codecVersion {
		return nil, fmt.Errorf("market codec: unsupported version %d", raw[0])
	}
	l := &Listing{Status: Status(raw[1])}
	if !l.Status.Valid() {
		return nil, fmt.Errorf("market codec: invalid status %d", raw[1])
	}
	off := 2
	off += copy(l.Seller[:], raw[off:off+20])
	off += copy(l.Asset[:], raw[off:off+32])
	l.Price = binary.BigEndian.Uint64(raw[off:])
	off += 8
	l.CreatedAt = int64(binary.BigEndian.Uint64(raw[off:]))
	off += 8
	count := int(raw[off])
	off++
	if count > HistoryCapacity {
		return nil, fmt.Errorf("market codec: history count %d exceeds capacity", count)
	}
	l.History = make([]TradeEvent, count)
	for i := 0; i < count; i++ {
		evt := TradeEvent{
			Price:     binary.BigEndian.Uint64(raw[off:]),
			Timestamp: int64(binary.BigEndian.Uint64(raw[off+8:])),
			Action:    TradeAction(raw[off+16]),
		}
		if !evt.Action.Valid() {
			return nil, fmt.Errorf("market codec: invalid action %d at slot %d", evt.Action, i)
		}
		l.History[i] = evt
		off += eventRecordSize
	}
	return l, nil
}
