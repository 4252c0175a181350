package streaming

import (
	"strconv"

	"melodia/core/events"
	"melodia/core/types"
)

// EventTypeBatchListens is emitted once a batch of listens is recorded.
const EventTypeBatchListens = "streaming.listens_recorded"

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

// BatchListensRecordedEvent returns the structured payload for a recorded
// listen batch.
func BatchListensRecordedEvent(contract types.Address, tokenID, count uint64, amount, listener string) *types.Event {
	return &types.Event{
		Type: EventTypeBatchListens,
		Attributes: map[string]string{
			"tokenContract": types.HexAddr(contract),
			"tokenId":       strconv.FormatUint(tokenID, 10),
			"count":         strconv.FormatUint(count, 10),
			"amount":        amount,
			"listener":      listener,
		},
	}
}
