// Package writer streams funnel rows into BigQuery.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/stockyard-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/stockyard-backend/pkg/bigquery"
)

type Config struct {
	FunnelTable string
	Retry       RetryPolicy
}

// RetryPolicy bounds retries of transient insert failures. Delays double
// from InitialBackoff up to MaximumBackoff, with up to 20% jitter.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.InitialBackoff << (attempt - 1)
	if d <= 0 || d > p.MaximumBackoff {
		d = p.MaximumBackoff
	}
	return d + time.Duration(rand.Int64N(int64(d)/5+1))
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Writer inserts one funnel row per call. It holds no buffer, so concurrent
// Pub/Sub callbacks may share it.
type Writer struct {
	client tableInserter
	table  string
	retry  RetryPolicy
	sleep  func(context.Context, time.Duration) error
}

func New(client *pkgbigquery.Client, cfg Config) (*Writer, error) {
	if client == nil {
		return nil, errors.New("writer: bigquery client required")
	}
	return newWriter(client, cfg)
}

func newWriter(client tableInserter, cfg Config) (*Writer, error) {
	table := strings.TrimSpace(cfg.FunnelTable)
	if table == "" {
		return nil, errors.New("writer: funnel table required")
	}
	return &Writer{client: client, table: table, retry: cfg.Retry.withDefaults(), sleep: sleepCtx}, nil
}

// InsertFunnel writes row, retrying while BigQuery reports a transient
// failure.
func (w *Writer) InsertFunnel(ctx context.Context, row types.FunnelEventRow) error {
	rows := []any{row}
	for attempt := 1; ; attempt++ {
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !transient(err) {
			return fmt.Errorf("insert funnel row %s (attempt %d): %w", row.EventID, attempt, err)
		}
		if err := w.sleep(ctx, w.retry.delay(attempt)); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// transient reports whether every failure inside err is worth retrying.
// Row-level errors nest, so the check recurses through them.
func transient(err error) bool {
	if multi := (cbigquery.MultiError)(nil); errors.As(err, &multi) {
		return all([]error(multi), transient)
	}
	if put := (cbigquery.PutMultiError)(nil); errors.As(err, &put) {
		return all([]cbigquery.RowInsertionError(put), func(row cbigquery.RowInsertionError) bool { return transient(row.Errors) })
	}
	if apiErr := (*googleapi.Error)(nil); errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func all[T any](items []T, pred func(T) bool) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !pred(item) {
			return false
		}
	}
	return true
}

// EncodeJSON prepares a value for a BigQuery JSON column. Raw JSON passes
// through as is; nil and empty input become NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("encode json column: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
