package warehouses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

const (
	DefaultCacheTTL = 10 * time.Minute
	cacheKind       = "warehouse_summary"
)

// Summary is the human-readable warehouse reference stamped onto payment orders and inquiries.
type Summary struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name"`
	Address                *string   `json:"address,omitempty"`
	City                   *string   `json:"city,omitempty"`
	MonthlyPriceMinorUnits *int64    `json:"monthlyPriceMinorUnits,omitempty"`
	Currency               *string   `json:"currency,omitempty"`
}

type warehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(kind, id string) string
}

// Service exposes the read-only catalog lookups the booking flow depends on.
type Service interface {
	GetWarehouseSummary(ctx context.Context, id uuid.UUID) (*Summary, error)
}

type service struct {
	repo  warehouseRepository
	cache summaryCache
	ttl   time.Duration
	logg  *logger.Logger
}

// NewService builds the catalog service. cache may be nil, in which case every lookup hits the database.
func NewService(repo warehouseRepository, cache summaryCache, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("warehouse repository required")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &service{repo: repo, cache: cache, ttl: ttl, logg: logg}, nil
}

func (s *service) GetWarehouseSummary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id is required")
	}

	if cached, ok := s.readCache(ctx, id); ok {
		return cached, nil
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup warehouse")
	}

	summary := &Summary{
		ID:                     row.ID,
		Name:                   row.Name,
		Address:                row.Address,
		City:                   row.City,
		MonthlyPriceMinorUnits: row.MonthlyPriceMinorUnits,
		Currency:               row.Currency,
	}
	s.writeCache(ctx, summary)
	return summary, nil
}

func (s *service) readCache(ctx context.Context, id uuid.UUID) (*Summary, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(cacheKind, id.String()))
	if err != nil {
		if !errors.Is(err, redislib.Nil) {
			s.warn(ctx, "warehouse summary cache read failed", err)
		}
		return nil, false
	}
	var summary Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		s.warn(ctx, "warehouse summary cache entry unreadable", err)
		return nil, false
	}
	return &summary, true
}

func (s *service) writeCache(ctx context.Context, summary *Summary) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey(cacheKind, summary.ID.String()), payload, s.ttl); err != nil {
		s.warn(ctx, "warehouse summary cache write failed", err)
	}
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
