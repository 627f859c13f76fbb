// Package bigquery wraps the BigQuery dataset that holds the booking funnel.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

const verifyTimeout = 10 * time.Second

var (
	errNoProject = errors.New("gcp project id is required")
	errNoDataset = errors.New("bigquery dataset is required")
	errNoTable   = errors.New("bigquery table name is required")
	errNilClient = errors.New("bigquery client not initialized")
)

// RowIterator yields query result rows.
type RowIterator interface {
	Next(dst any) error
}

// Client is bound to one dataset and the tables the service reads and writes.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	project string
	funnel  string
	tables  []string
}

// NewClient connects and refuses to start when the dataset or any configured
// table is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	tables := configuredTables(cfg)
	switch {
	case project == "":
		return nil, errNoProject
	case datasetID == "":
		return nil, errNoDataset
	case len(tables) == 0:
		return nil, errNoTable
	}

	bq, err := bigquery.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: connect: %w", err)
	}
	c := &Client{
		bq:      bq,
		dataset: bq.Dataset(datasetID),
		project: project,
		funnel:  tables[0],
		tables:  tables,
	}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"dataset": datasetID, "tables": tables})
		logg.Info(ctx, "bigquery ready")
	}
	return c, nil
}

// clientOptions prefers inline credentials over a key file; with neither the
// library falls back to application default credentials.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func configuredTables(cfg config.BigQueryConfig) []string {
	var tables []string
	if name := strings.TrimSpace(cfg.FunnelTable); name != "" {
		tables = append(tables, name)
	}
	return tables
}

// Ping checks the dataset and every configured table still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNilClient
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeLookup("dataset", c.dataset.DatasetID, err)
	}
	for _, name := range c.tables {
		if _, err := c.dataset.Table(name).Metadata(ctx); err != nil {
			return describeLookup("table", name, err)
		}
	}
	return nil
}

func describeLookup(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("bigquery: %s %q does not exist", kind, name)
	}
	return fmt.Errorf("bigquery: inspect %s %q: %w", kind, name, err)
}

func (c *Client) FunnelTable() string {
	if c == nil {
		return ""
	}
	return c.funnel
}

// TableRef renders `project.dataset.table` for use inside SQL text.
func (c *Client) TableRef(table string) string {
	if c == nil || c.dataset == nil {
		return ""
	}
	return fmt.Sprintf("`%s.%s.%s`", c.project, c.dataset.DatasetID, strings.TrimSpace(table))
}

// InsertRows streams rows into table. Rows that implement bigquery.ValueSaver
// choose their own insert IDs, which BigQuery uses for best-effort dedup.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errNilClient
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errNoTable
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

// Query runs parameterized standard SQL.
func (c *Client) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (RowIterator, error) {
	if c == nil || c.bq == nil {
		return nil, errNilClient
	}
	q := c.bq.Query(sql)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: query: %w", err)
	}
	return it, nil
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}
