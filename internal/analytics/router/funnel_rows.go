package router

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/internal/analytics/types"
	"github.com/angelmondragon/stockyard-backend/internal/analytics/writer"
	outboxpayloads "github.com/angelmondragon/stockyard-backend/pkg/outbox/payloads"
)

// funnelHandler writes one row per event: the envelope columns plus the
// stage columns build derives from the typed payload.
type funnelHandler[T any] struct {
	writer Writer
	build  func(*types.FunnelEventRow, *T)
}

func (h funnelHandler[T]) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*T)
	if !ok {
		return fmt.Errorf("funnel row for %s: unexpected payload %T", envelope.EventType, payload)
	}
	row := types.FunnelEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    envelope.OccurredAt.UTC(),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
	}
	h.build(&row, event)
	encoded, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return err
	}
	row.Payload = encoded
	return h.writer.InsertFunnel(ctx, row)
}

func paymentOrderCreatedRow(row *types.FunnelEventRow, event *outboxpayloads.PaymentOrderCreatedEvent) {
	row.Stage = types.StageCheckout
	row.BookingDraftID = uuidPtr(event.BookingDraftID)
	row.WarehouseID = uuidPtr(event.WarehouseID)
	row.OrderID = strPtr(event.OrderID)
	row.AmountMinorUnits = int64Ptr(event.AmountMinorUnits)
	row.Currency = strPtr(event.Currency)
}

func paymentOrderFailedRow(row *types.FunnelEventRow, event *outboxpayloads.PaymentOrderFailedEvent) {
	row.Stage = types.StageFailed
	row.BookingDraftID = uuidPtr(event.BookingDraftID)
	row.OrderID = strPtr(event.OrderID)
	row.Reason = strPtr(event.Reason)
}

func bookingConfirmedRow(row *types.FunnelEventRow, event *outboxpayloads.BookingConfirmedEvent) {
	row.Stage = types.StageConfirmed
	row.BookingDraftID = uuidPtr(event.BookingDraftID)
	row.WarehouseID = uuidPtr(event.WarehouseID)
	row.OrderID = strPtr(event.OrderID)
	row.PaymentID = strPtr(event.PaymentID)
	row.BookingID = uuidPtr(event.BookingID)
	row.ConfirmedVia = strPtr(event.Source)
	if !event.ConfirmedAt.IsZero() {
		row.OccurredAt = event.ConfirmedAt.UTC()
	}
}

func inquiryCreatedRow(row *types.FunnelEventRow, event *outboxpayloads.InquiryCreatedEvent) {
	row.Stage = types.StageInquiry
	row.InquiryID = uuidPtr(event.InquiryID)
	row.InquirySource = strPtr(string(event.Source))
	row.Reason = strPtr(event.FallbackReason)
	if event.BookingDraftID != nil {
		row.BookingDraftID = uuidPtr(*event.BookingDraftID)
	}
	if event.WarehouseID != nil {
		row.WarehouseID = uuidPtr(*event.WarehouseID)
	}
}

func inquiryAllocatedRow(row *types.FunnelEventRow, event *outboxpayloads.InquiryAllocatedEvent) {
	row.Stage = types.StageInquiryOwned
	row.InquiryID = uuidPtr(event.InquiryID)
	row.StaffID = strPtr(event.AllocatedTo)
	row.Reason = strPtr(string(event.AllocationStatus))
}

func inquiryStatusChangedRow(row *types.FunnelEventRow, event *outboxpayloads.InquiryStatusChangedEvent) {
	row.Stage = types.StageInquiryOwned
	row.InquiryID = uuidPtr(event.InquiryID)
	row.StaffID = strPtr(event.ChangedBy)
	row.Reason = strPtr(string(event.From) + "->" + string(event.To))
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

func uuidPtr(v uuid.UUID) *string {
	if v == uuid.Nil {
		return nil
	}
	s := v.String()
	return &s
}
