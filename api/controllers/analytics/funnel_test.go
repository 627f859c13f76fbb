package analytics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockyard-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubReporter struct {
	last     types.FunnelQueryRequest
	calls    int
	response *types.FunnelQueryResponse
	err      error
}

func (s *stubReporter) Funnel(_ context.Context, req types.FunnelQueryRequest) (*types.FunnelQueryResponse, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	if s.response == nil {
		return &types.FunnelQueryResponse{}, nil
	}
	return s.response, nil
}

func serve(t *testing.T, svc funnelReporter, target string) *httptest.ResponseRecorder {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	resp := httptest.NewRecorder()
	bookingFunnel(svc, logg, func() time.Time { return fixedNow }).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
	return resp
}

func TestBookingFunnelUsesPreset(t *testing.T) {
	stub := &stubReporter{response: &types.FunnelQueryResponse{
		Totals:         types.FunnelTotals{OrdersCreated: 4, BookingsConfirmed: 3},
		ConversionRate: 0.75,
	}}
	resp := serve(t, stub, "/api/admin/analytics/funnel?preset=7d")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, fixedNow, stub.last.End)
	assert.Equal(t, 7*24*time.Hour, stub.last.End.Sub(stub.last.Start))

	var body struct {
		Data types.FunnelQueryResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 0.75, body.Data.ConversionRate)
	assert.EqualValues(t, 3, body.Data.Totals.BookingsConfirmed)
}

func TestBookingFunnelDefaultsToThirtyDays(t *testing.T) {
	stub := &stubReporter{}
	require.Equal(t, http.StatusOK, serve(t, stub, "/api/admin/analytics/funnel").Code)
	assert.Equal(t, 30*24*time.Hour, stub.last.End.Sub(stub.last.Start))
}

func TestBookingFunnelRejectsBadInput(t *testing.T) {
	stub := &stubReporter{}
	for _, query := range []string{
		"preset=1y",
		"from=2026-03-01T00:00:00Z",
		"from=2026-03-05&to=2026-03-01",
		"from=2024-01-01&to=2026-01-01",
		"from=yesterday&to=today",
		"warehouseId=not-a-uuid",
	} {
		resp := serve(t, stub, "/api/admin/analytics/funnel?"+query)
		assert.Equal(t, http.StatusBadRequest, resp.Code, query)
	}
	assert.Zero(t, stub.calls)
}

func TestBookingFunnelDateOnlyRangeCoversLastDay(t *testing.T) {
	stub := &stubReporter{}
	resp := serve(t, stub, "/api/admin/analytics/funnel?from=2026-03-01&to=2026-03-02")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), stub.last.Start)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), stub.last.End)
}

func TestBookingFunnelForwardsWarehouseAndErrors(t *testing.T) {
	stub := &stubReporter{err: pkgerrors.New(pkgerrors.CodeDependency, "bq down")}
	q := url.Values{
		"from":        {"2026-03-01T00:00:00Z"},
		"to":          {"2026-03-02T00:00:00Z"},
		"warehouseId": {"5b0c9f4e-7d36-4b39-9a8f-3f0b1d2c4e5a"},
	}
	resp := serve(t, stub, "/api/admin/analytics/funnel?"+q.Encode())
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "5b0c9f4e-7d36-4b39-9a8f-3f0b1d2c4e5a", stub.last.WarehouseID)
}

func TestBookingFunnelWithoutAnalytics(t *testing.T) {
	resp := serve(t, nil, "/api/admin/analytics/funnel")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
