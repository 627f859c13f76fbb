package bigquery

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/stockyard-backend/pkg/config"
)

func TestConfiguredTables(t *testing.T) {
	assert.Equal(t, []string{"booking_funnel_events"}, configuredTables(config.BigQueryConfig{FunnelTable: " booking_funnel_events "}))
	assert.Empty(t, configuredTables(config.BigQueryConfig{FunnelTable: "  "}))
}

func TestClientOptions(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{CredentialsJSON: " "}))
}

func TestNewClientValidates(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		gcp  config.GCPConfig
		bq   config.BigQueryConfig
		want error
	}{
		{config.GCPConfig{}, config.BigQueryConfig{Dataset: "d", FunnelTable: "t"}, errNoProject},
		{config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{FunnelTable: "t"}, errNoDataset},
		{config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d"}, errNoTable},
	}
	for _, tc := range cases {
		_, err := NewClient(ctx, tc.gcp, tc.bq, nil)
		assert.ErrorIs(t, err, tc.want)
	}
}

func TestDescribeLookup(t *testing.T) {
	notFound := describeLookup("table", "funnel", &googleapi.Error{Code: http.StatusNotFound})
	assert.EqualError(t, notFound, `bigquery: table "funnel" does not exist`)

	cause := errors.New("deadline exceeded")
	other := describeLookup("dataset", "stockyard", cause)
	assert.ErrorIs(t, other, cause)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.Empty(t, c.FunnelTable())
	assert.Empty(t, c.TableRef("t"))
	assert.ErrorIs(t, c.Ping(context.Background()), errNilClient)
	assert.ErrorIs(t, c.InsertRows(context.Background(), "t", []any{1}), errNilClient)
	assert.NoError(t, c.Close())
}
