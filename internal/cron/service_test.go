package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

type blockingJob struct{}

func (blockingJob) Name() string { return "blocking" }

func (blockingJob) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestService(t *testing.T, lock Lock, jobTimeout time.Duration, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.NewRegistry()),
		JobTimeout: jobTimeout,
	})
	require.NoError(t, err)
	return svc
}

func TestCycleRunsEveryJobAndReportsFailures(t *testing.T) {
	ok := &countingJob{name: "outbox_retention"}
	broken := &countingJob{name: "stale_payment_orders", err: errors.New("gateway down")}
	lock := &fakeLock{}
	svc := newTestService(t, lock, 0, broken, ok)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale_payment_orders: gateway down")
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, broken.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)
}

func TestCycleSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "outbox_retention"}
	svc := newTestService(t, &fakeLock{held: true}, 0, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
}

func TestCycleLockError(t *testing.T) {
	job := &countingJob{name: "outbox_retention"}
	svc := newTestService(t, &fakeLock{err: errors.New("redis unavailable")}, 0, job)

	assert.ErrorContains(t, svc.RunOnce(context.Background()), "redis unavailable")
	assert.Zero(t, job.runs)
}

func TestJobTimeoutBoundsSlowJobs(t *testing.T) {
	svc := newTestService(t, &fakeLock{}, 20*time.Millisecond, blockingJob{})

	err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "outbox_retention"}
	svc := newTestService(t, &fakeLock{}, 0, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs)
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(&countingJob{name: "sweep"}, &countingJob{name: "sweep"})
	assert.ErrorContains(t, err, "registered twice")

	_, err = NewRegistry(&countingJob{name: " "})
	assert.Error(t, err)

	registry, err := NewRegistry(nil, &countingJob{name: "a"}, &countingJob{name: "b"})
	require.NoError(t, err)
	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}
