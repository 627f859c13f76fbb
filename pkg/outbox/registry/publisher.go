package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and what its data
// decodes into.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	NewPayload    func() any
}

// ResolvedEvent is an outbox row checked against its descriptor.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes every payment, booking and inquiry event to the
// domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, errors.New("domain topic is required")
	}

	table := []struct {
		event     enums.OutboxEventType
		aggregate enums.OutboxAggregateType
		payload   func() any
	}{
		{enums.EventPaymentOrderCreated, enums.AggregatePaymentOrder, func() any { return &payloads.PaymentOrderCreatedEvent{} }},
		{enums.EventPaymentOrderFailed, enums.AggregatePaymentOrder, func() any { return &payloads.PaymentOrderFailedEvent{} }},
		{enums.EventBookingConfirmed, enums.AggregateBooking, func() any { return &payloads.BookingConfirmedEvent{} }},
		{enums.EventInquiryCreated, enums.AggregateInquiry, func() any { return &payloads.InquiryCreatedEvent{} }},
		{enums.EventInquiryAllocated, enums.AggregateInquiry, func() any { return &payloads.InquiryAllocatedEvent{} }},
		{enums.EventInquiryStatusChanged, enums.AggregateInquiry, func() any { return &payloads.InquiryStatusChangedEvent{} }},
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(table))}
	for _, row := range table {
		reg.entries[row.event] = EventDescriptor{
			EventType:     row.event,
			AggregateType: row.aggregate,
			Topic:         cfg.DomainTopic,
			NewPayload:    row.payload,
		}
	}
	return reg, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve checks the row's routing columns and decodes its data. Every error
// it returns is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("aggregate mismatch: %s events belong to %s, got %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("missing aggregate_id")
	}

	envelope, err := outbox.ParseEnvelope(event.Payload)
	if err != nil {
		return nil, permanent("%s: %w", event.EventType, err)
	}
	payload := desc.NewPayload()
	if err := envelope.DecodeData(payload); err != nil {
		return nil, permanent("%s: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
