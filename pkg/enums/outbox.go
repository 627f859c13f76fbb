package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType names the entity an outbox event describes
// (aggregate_type_enum).
type OutboxAggregateType string

const (
	AggregatePaymentOrder OutboxAggregateType = "payment_order"
	AggregateBooking      OutboxAggregateType = "booking"
	AggregateInquiry      OutboxAggregateType = "inquiry"
)

var aggregateTypes = []OutboxAggregateType{AggregatePaymentOrder, AggregateBooking, AggregateInquiry}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the event_type_enum column. The values double as the
// Pub/Sub event_type attribute.
type OutboxEventType string

const (
	// checkout funnel
	EventPaymentOrderCreated OutboxEventType = "payment_order_created"
	EventPaymentOrderFailed  OutboxEventType = "payment_order_failed"
	EventBookingConfirmed    OutboxEventType = "booking_confirmed"

	// inquiry lifecycle
	EventInquiryCreated       OutboxEventType = "inquiry_created"
	EventInquiryAllocated     OutboxEventType = "inquiry_allocated"
	EventInquiryStatusChanged OutboxEventType = "inquiry_status_changed"
)

var eventTypes = []OutboxEventType{
	EventPaymentOrderCreated,
	EventPaymentOrderFailed,
	EventBookingConfirmed,
	EventInquiryCreated,
	EventInquiryAllocated,
	EventInquiryStatusChanged,
}

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
