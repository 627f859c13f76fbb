package analytics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/stockyard-backend/api/responses"
	"github.com/angelmondragon/stockyard-backend/api/validators"
	"github.com/angelmondragon/stockyard-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

type funnelReporter interface {
	Funnel(ctx context.Context, req types.FunnelQueryRequest) (*types.FunnelQueryResponse, error)
}

// BookingFunnel serves the admin booking conversion report:
// drafts -> payment orders -> confirmed bookings, plus fallback inquiries.
func BookingFunnel(service funnelReporter, logg *logger.Logger) http.HandlerFunc {
	return bookingFunnel(service, logg, time.Now)
}

func bookingFunnel(service funnelReporter, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if service == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "analytics unavailable"))
			return
		}

		q := r.URL.Query()
		window, err := parseWindow(q, now())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		req := types.FunnelQueryRequest{Start: window.start, End: window.end}
		if raw := strings.TrimSpace(q.Get("warehouseId")); raw != "" {
			id, err := validators.ParseUUID(raw, "warehouseId")
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			req.WarehouseID = id.String()
		}

		report, err := service.Funnel(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
