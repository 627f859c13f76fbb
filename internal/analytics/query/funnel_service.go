package query

import (
	"context"
	"errors"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/stockyard-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/stockyard-backend/pkg/bigquery"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
)

const (
	dailyCountSQL = `
SELECT
  FORMAT_DATE('%%F', DATE_TRUNC(occurred_at, DAY)) AS day,
  COUNT(DISTINCT event_id) AS value
FROM %s
WHERE %s
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	totalsSQL = `
SELECT
  COUNT(DISTINCT IF(event_type = 'payment_order_created', event_id, NULL)) AS orders_created,
  COUNT(DISTINCT IF(event_type = 'booking_confirmed', event_id, NULL)) AS bookings_confirmed,
  COUNT(DISTINCT IF(event_type = 'payment_order_failed', event_id, NULL)) AS orders_failed,
  COUNT(DISTINCT IF(event_type = 'inquiry_created' AND inquiry_source = 'payment_fallback', event_id, NULL)) AS fallback_inquiries,
  COUNT(DISTINCT IF(event_type = 'inquiry_created' AND inquiry_source = 'direct_contact', event_id, NULL)) AS direct_inquiries,
  COUNT(DISTINCT IF(event_type = 'payment_order_created', booking_draft_id, NULL)) AS drafts_checked_out,
  COUNT(DISTINCT IF(event_type = 'booking_confirmed', booking_draft_id, NULL)) AS drafts_confirmed
FROM %s
WHERE %s
  AND occurred_at BETWEEN @start AND @end
`

	failureReasonsSQL = `
SELECT reason AS label, COUNT(DISTINCT event_id) AS value
FROM %s
WHERE %s
  AND event_type = 'payment_order_failed'
  AND reason IS NOT NULL
  AND occurred_at BETWEEN @start AND @end
GROUP BY reason
ORDER BY value DESC
LIMIT 5
`
)

type querier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (pkgbigquery.RowIterator, error)
}

// FunnelService reports booking conversion from the booking_funnel_events table.
type FunnelService interface {
	Query(ctx context.Context, req types.FunnelQueryRequest) (*types.FunnelQueryResponse, error)
}

type funnelService struct {
	client   querier
	tableRef string
}

// NewFunnelService builds a service backed by BigQuery. tableRef must be fully qualified.
func NewFunnelService(client querier, tableRef string) (FunnelService, error) {
	switch {
	case client == nil:
		return nil, errors.New("bigquery client required")
	case tableRef == "":
		return nil, errors.New("funnel table reference required")
	}
	return &funnelService{client: client, tableRef: tableRef}, nil
}

type seriesRow struct {
	Day   string `bigquery:"day"`
	Value int64  `bigquery:"value"`
}

type labelRow struct {
	Label string `bigquery:"label"`
	Value int64  `bigquery:"value"`
}

type totalsRow struct {
	OrdersCreated     int64 `bigquery:"orders_created"`
	BookingsConfirmed int64 `bigquery:"bookings_confirmed"`
	OrdersFailed      int64 `bigquery:"orders_failed"`
	FallbackInquiries int64 `bigquery:"fallback_inquiries"`
	DirectInquiries   int64 `bigquery:"direct_inquiries"`
	DraftsCheckedOut  int64 `bigquery:"drafts_checked_out"`
	DraftsConfirmed   int64 `bigquery:"drafts_confirmed"`
}

// Query runs the five report queries concurrently; the first failure cancels
// the rest.
func (s *funnelService) Query(ctx context.Context, req types.FunnelQueryRequest) (*types.FunnelQueryResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	scope := "TRUE"
	if req.WarehouseID != "" {
		scope = "warehouse_id = @warehouseID"
	}
	params := baseParams(req)

	var (
		res    types.FunnelQueryResponse
		totals []totalsRow
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, series := range []struct {
		name   string
		filter string
		dst    *[]types.TimeSeriesPoint
	}{
		{"orders created", "event_type = 'payment_order_created'", &res.OrdersCreated},
		{"bookings confirmed", "event_type = 'booking_confirmed'", &res.BookingsConfirmed},
		{"fallback inquiries", "event_type = 'inquiry_created' AND inquiry_source = 'payment_fallback'", &res.FallbackInquiries},
	} {
		sql := fmt.Sprintf(dailyCountSQL, s.tableRef, scope+" AND "+series.filter)
		g.Go(func() (err error) {
			*series.dst, err = collect(gctx, s.client, series.name, sql, params, func(r seriesRow) types.TimeSeriesPoint {
				return types.TimeSeriesPoint{Date: r.Day, Value: r.Value}
			})
			return err
		})
	}
	g.Go(func() (err error) {
		totals, err = collect(gctx, s.client, "funnel totals", fmt.Sprintf(totalsSQL, s.tableRef, scope), params,
			func(r totalsRow) totalsRow { return r })
		return err
	})
	g.Go(func() (err error) {
		res.TopFailureReasons, err = collect(gctx, s.client, "failure reasons", fmt.Sprintf(failureReasonsSQL, s.tableRef, scope), params,
			func(r labelRow) types.LabelValue { return types.LabelValue{Label: r.Label, Value: r.Value} })
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(totals) > 0 {
		t := totals[0]
		res.Totals = types.FunnelTotals{
			OrdersCreated:     t.OrdersCreated,
			BookingsConfirmed: t.BookingsConfirmed,
			OrdersFailed:      t.OrdersFailed,
			FallbackInquiries: t.FallbackInquiries,
			DirectInquiries:   t.DirectInquiries,
		}
		if t.DraftsCheckedOut > 0 {
			res.ConversionRate = float64(t.DraftsConfirmed) / float64(t.DraftsCheckedOut)
		}
	}
	return &res, nil
}

func validateRequest(req types.FunnelQueryRequest) error {
	switch {
	case req.Start.IsZero() || req.End.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	case req.End.Before(req.Start):
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	return nil
}

func baseParams(req types.FunnelQueryRequest) []cloudbigquery.QueryParameter {
	params := []cloudbigquery.QueryParameter{
		{Name: "start", Value: req.Start},
		{Name: "end", Value: req.End},
	}
	if req.WarehouseID != "" {
		params = append(params, cloudbigquery.QueryParameter{Name: "warehouseID", Value: req.WarehouseID})
	}
	return params
}

// collect drains one query into a slice, converting each row of type R.
func collect[R, T any](ctx context.Context, q querier, name, sql string, params []cloudbigquery.QueryParameter, convert func(R) T) ([]T, error) {
	it, err := q.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	var out []T
	for {
		var row R
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s row: %w", name, err)
		}
		out = append(out, convert(row))
	}
}
