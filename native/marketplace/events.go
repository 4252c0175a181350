package marketplace

import (
	"strconv"

	"melodia/core/events"
	"melodia/core/types"
)

const (
	// EventTypeListed is emitted when a listing is created.
	EventTypeListed = "marketplace.listed"
	// EventTypeSold is emitted when a listing settles in favour of a buyer.
	EventTypeSold = "marketplace.sold"
	// EventTypeCancelled is emitted when a seller withdraws a listing.
	EventTypeCancelled = "marketplace.cancelled"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func listingAttributes(listing *Listing) map[string]string {
	price := "0"
	if listing.Price != nil {
		price = listing.Price.String()
	}
	return map[string]string{
		"listingId":     strconv.FormatUint(listing.ID, 10),
		"seller":        types.HexAddr(listing.Seller),
		"tokenContract": types.HexAddr(listing.TokenContract),
		"tokenId":       strconv.FormatUint(listing.TokenID, 10),
		"price":         price,
	}
}

// ListedEvent returns the structured payload for a new listing.
func ListedEvent(listing *Listing) *types.Event {
	return &types.Event{Type: EventTypeListed, Attributes: listingAttributes(listing)}
}

// SoldEvent returns the structured payload for a settled sale.
func SoldEvent(listing *Listing, buyer types.Address) *types.Event {
	attrs := listingAttributes(listing)
	attrs["buyer"] = types.HexAddr(buyer)
	return &types.Event{Type: EventTypeSold, Attributes: attrs}
}

// CancelledEvent returns the structured payload for a cancelled listing.
func CancelledEvent(listing *Listing) *types.Event {
	return &types.Event{Type: EventTypeCancelled, Attributes: listingAttributes(listing)}
}
