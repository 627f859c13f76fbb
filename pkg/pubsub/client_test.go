package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/stockyard-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{topicResourceName("p1", "domain"), "projects/p1/topics/domain"},
		{subscriptionResourceName("p1", " analytics "), "projects/p1/subscriptions/analytics"},
		{topicResourceName("p1", "projects/other/topics/domain"), "projects/other/topics/domain"},
		{topicResourceName("p1", "projects/other/subscriptions/domain"), "projects/p1/topics/projects/other/subscriptions/domain"},
		{topicResourceName("p1", ""), ""},
		{subscriptionResourceName("", "analytics"), ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.got)
	}
}

func TestCredentials(t *testing.T) {
	assert.Len(t, credentials(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Len(t, credentials(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Nil(t, credentials(config.GCPConfig{}))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: " "}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errNoProject)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errNilClient)
	assert.Nil(t, c.AnalyticsSubscription())
	assert.Nil(t, c.Publisher("domain"))
	assert.Nil(t, c.DomainPublisher())
	assert.NoError(t, c.Close())
}
