package types

import "time"

// FunnelQueryRequest selects the window (and optionally one warehouse) to report on.
type FunnelQueryRequest struct {
	Start       time.Time
	End         time.Time
	WarehouseID string
}

// TimeSeriesPoint describes a single date/value pair returned by the query service.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// LabelValue represents a top-N entry such as a failure reason.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

type FunnelTotals struct {
	OrdersCreated     int64 `json:"ordersCreated"`
	BookingsConfirmed int64 `json:"bookingsConfirmed"`
	OrdersFailed      int64 `json:"ordersFailed"`
	FallbackInquiries int64 `json:"fallbackInquiries"`
	DirectInquiries   int64 `json:"directInquiries"`
}

// FunnelQueryResponse is the admin booking funnel report.
type FunnelQueryResponse struct {
	OrdersCreated     []TimeSeriesPoint `json:"ordersCreated"`
	BookingsConfirmed []TimeSeriesPoint `json:"bookingsConfirmed"`
	FallbackInquiries []TimeSeriesPoint `json:"fallbackInquiries"`
	Totals            FunnelTotals      `json:"totals"`
	ConversionRate    float64           `json:"conversionRate"`
	TopFailureReasons []LabelValue      `json:"topFailureReasons"`
}
