package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	outboxDeleteBatch      = 1000
	// Bounds one run; whatever is left waits for the next cycle.
	maxRetentionBatches = 50
)

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	DeleteDeadLettersBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	// Retention applies to published events, DLQRetention to dead letters.
	Retention    time.Duration
	DLQRetention time.Duration
	BatchSize    int
}

type outboxRetentionJob struct {
	logg   *logger.Logger
	purges []purge
	batch  int
	now    func() time.Time
}

// purge is one table the job trims.
type purge struct {
	table  string
	keep   time.Duration
	delete func(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	orDefault := func(d, fallback time.Duration) time.Duration {
		if d <= 0 {
			return fallback
		}
		return d
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = outboxDeleteBatch
	}
	repo := params.Repository
	return &outboxRetentionJob{
		logg: params.Logger,
		purges: []purge{
			{"outbox_events", orDefault(params.Retention, defaultOutboxRetention), repo.DeletePublishedBefore},
			{"outbox_dlq", orDefault(params.DLQRetention, defaultDLQRetention), repo.DeleteDeadLettersBefore},
		},
		batch: batch,
		now:   time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run trims every table even when an earlier one fails; the failures come
// back combined.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error
	for _, p := range j.purges {
		cutoff := now.Add(-p.keep)
		deleted, err := j.drain(ctx, p, cutoff)
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"table":        p.table,
			"cutoff":       cutoff,
			"rows_deleted": deleted,
		})
		if err != nil {
			j.logg.Error(logCtx, "outbox retention purge failed", err)
			errs = multierr.Append(errs, fmt.Errorf("purge %s: %w", p.table, err))
			continue
		}
		j.logg.Info(logCtx, "outbox retention purge complete")
	}
	return errs
}

func (j *outboxRetentionJob) drain(ctx context.Context, p purge, cutoff time.Time) (int64, error) {
	var total int64
	for range maxRetentionBatches {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := p.delete(ctx, cutoff, j.batch)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(j.batch) {
			break
		}
	}
	return total, nil
}
