package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// FunnelEventRow mirrors the booking_funnel_events BigQuery schema. One row per
// domain event; stage-specific columns are null when they do not apply.
type FunnelEventRow struct {
	EventID          string             `bigquery:"event_id"`
	EventType        string             `bigquery:"event_type"`
	Stage            string             `bigquery:"stage"`
	OccurredAt       time.Time          `bigquery:"occurred_at"`
	AggregateType    string             `bigquery:"aggregate_type"`
	AggregateID      string             `bigquery:"aggregate_id"`
	BookingDraftID   *string            `bigquery:"booking_draft_id"`
	WarehouseID      *string            `bigquery:"warehouse_id"`
	OrderID          *string            `bigquery:"order_id"`
	PaymentID        *string            `bigquery:"payment_id"`
	BookingID        *string            `bigquery:"booking_id"`
	InquiryID        *string            `bigquery:"inquiry_id"`
	InquirySource    *string            `bigquery:"inquiry_source"`
	Reason           *string            `bigquery:"reason"`
	ConfirmedVia     *string            `bigquery:"confirmed_via"`
	AmountMinorUnits *int64             `bigquery:"amount_minor_units"`
	Currency         *string            `bigquery:"currency"`
	StaffID          *string            `bigquery:"staff_id"`
	Payload          cbigquery.NullJSON `bigquery:"payload"`
}

// Funnel stages. A draft moves order_created → (booking_confirmed | order_failed),
// and failures surface again as inquiry rows.
const (
	StageCheckout     = "checkout"
	StageConfirmed    = "confirmed"
	StageFailed       = "failed"
	StageInquiry      = "inquiry"
	StageInquiryOwned = "inquiry_followup"
)

// Save implements bigquery.ValueSaver. Nil pointer columns are written as
// NULL and the event id doubles as the streaming insert id, so a redelivered
// event lands on the same row.
func (r FunnelEventRow) Save() (map[string]cbigquery.Value, string, error) {
	row := map[string]cbigquery.Value{
		"event_id":           r.EventID,
		"event_type":         r.EventType,
		"stage":              r.Stage,
		"occurred_at":        r.OccurredAt,
		"aggregate_type":     r.AggregateType,
		"aggregate_id":       r.AggregateID,
		"booking_draft_id":   nullable(r.BookingDraftID),
		"warehouse_id":       nullable(r.WarehouseID),
		"order_id":           nullable(r.OrderID),
		"payment_id":         nullable(r.PaymentID),
		"booking_id":         nullable(r.BookingID),
		"inquiry_id":         nullable(r.InquiryID),
		"inquiry_source":     nullable(r.InquirySource),
		"reason":             nullable(r.Reason),
		"confirmed_via":      nullable(r.ConfirmedVia),
		"amount_minor_units": nullable(r.AmountMinorUnits),
		"currency":           nullable(r.Currency),
		"staff_id":           nullable(r.StaffID),
		"payload":            nil,
	}
	if r.Payload.Valid {
		row["payload"] = r.Payload.JSONVal
	}
	return row, r.EventID, nil
}

func nullable[T any](v *T) cbigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}
