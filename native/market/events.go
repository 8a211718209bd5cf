package market

import (
	"encoding/hex"
	"strconv"

	"cardmarket/core/types"
	"cardmarket/crypto"
)

const (
	EventTypeListed       = "market.listed"
	EventTypePriceUpdated = "market.price_updated"
	EventTypeCancelled    = "market.cancelled"
	EventTypePurchased    = "market.purchased"
)

// NewListedEvent emits the payload when a listing opens.
func NewListedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeListed, l) }

// NewPriceUpdatedEvent emits the payload when a listing is repriced.
func NewPriceUpdatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypePriceUpdated, l)
}

// NewCancelledEvent emits the payload when a listing is withdrawn.
func NewCancelledEvent(l *Listing) *types.Event { return newListingEvent(EventTypeCancelled, l) }

// NewPurchasedEvent emits the payload of a settled sale. The listing passed
// in already names the buyer as its seller.
func NewPurchasedEvent(l *Listing, previousSeller, authority [20]byte, split Settlement) *types.Event {
	evt := newListingEvent(EventTypePurchased, l)
	if l == nil {
		return evt
	}
	evt.Attributes["buyer"] = crypto.FormatAddress(l.Seller)
	evt.Attributes["seller"] = crypto.FormatAddress(previousSeller)
	evt.Attributes["authority"] = crypto.FormatAddress(authority)
	evt.Attributes["royalty"] = strconv.FormatUint(split.Royalty, 10)
	evt.Attributes["sellerAmount"] = strconv.FormatUint(split.SellerAmount, 10)
	return evt
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["listing"] = crypto.FormatAddress(ListingAddress(l.Asset))
	attrs["asset"] = "0x" + hex.EncodeToString(l.Asset[:])
	attrs["seller"] = crypto.FormatAddress(l.Seller)
	attrs["price"] = strconv.FormatUint(l.Price, 10)
	attrs["status"] = l.Status.String()
	attrs["createdAt"] = strconv.FormatInt(l.CreatedAt, 10)
	if last, ok := l.LastEvent(); ok {
		attrs["action"] = last.Action.String()
		attrs["timestamp"] = strconv.FormatInt(last.Timestamp, 10)
		attrs["historyIndex"] = strconv.Itoa(len(l.History) - 1)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
