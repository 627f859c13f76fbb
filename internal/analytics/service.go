package analytics

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stockyard-backend/internal/analytics/query"
	"github.com/angelmondragon/stockyard-backend/internal/analytics/types"
	"github.com/angelmondragon/stockyard-backend/pkg/bigquery"
)

// Service provides booking funnel reports.
type Service interface {
	// Funnel returns conversion figures for the requested window.
	Funnel(ctx context.Context, req types.FunnelQueryRequest) (*types.FunnelQueryResponse, error)
}

type service struct {
	funnel query.FunnelService
}

// NewService builds an analytics service backed by BigQuery.
func NewService(client *bigquery.Client) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	funnel, err := query.NewFunnelService(client, client.TableRef(client.FunnelTable()))
	if err != nil {
		return nil, err
	}
	return &service{funnel: funnel}, nil
}

func (s *service) Funnel(ctx context.Context, req types.FunnelQueryRequest) (*types.FunnelQueryResponse, error) {
	return s.funnel.Query(ctx, req)
}
