package payments

import (
	"melodia/core/events"
	"melodia/core/types"
)

const (
	// EventTypePaymentRecorded is emitted when a beneficiary balance is credited.
	EventTypePaymentRecorded = "payments.recorded"
	// EventTypePaymentWithdrawn is emitted when a beneficiary drains their balance.
	EventTypePaymentWithdrawn = "payments.withdrawn"
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

// PaymentRecordedEvent returns the structured payload for a ledger credit.
func PaymentRecordedEvent(module, beneficiary, amount, pending string) *types.Event {
	return &types.Event{
		Type: EventTypePaymentRecorded,
		Attributes: map[string]string{
			"module":      module,
			"beneficiary": beneficiary,
			"amount":      amount,
			"pending":     pending,
		},
	}
}

// PaymentWithdrawnEvent returns the structured payload for a full withdrawal.
func PaymentWithdrawnEvent(module, beneficiary, amount string) *types.Event {
	return &types.Event{
		Type: EventTypePaymentWithdrawn,
		Attributes: map[string]string{
			"module":      module,
			"beneficiary": beneficiary,
			"amount":      amount,
		},
	}
}
