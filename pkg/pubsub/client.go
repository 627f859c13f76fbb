// Package pubsub binds the service to its domain-event topic and the
// analytics subscription that drains it.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

var (
	errNoProject      = errors.New("gcp project id is required")
	errNoSubscription = errors.New("pubsub subscription name is required")
	errNilClient      = errors.New("pubsub client not initialized")
)

type Client struct {
	ps      *pubsub.Client
	project string
	// fully qualified resource names
	topic        string
	subscription string
}

// NewClient connects and fails fast when the analytics subscription is
// missing, since the worker would otherwise idle silently.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errNoProject
	}
	ps, err := pubsub.NewClient(ctx, project, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub: connect: %w", err)
	}
	c := &Client{
		ps:           ps,
		project:      project,
		topic:        topicResourceName(project, cfg.DomainTopic),
		subscription: subscriptionResourceName(project, cfg.AnalyticsSubscription),
	}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "subscription", c.subscription), "pubsub ready")
	}
	return c, nil
}

func credentials(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// Ping confirms the analytics subscription still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNilClient
	}
	if c.subscription == "" {
		return errNoSubscription
	}
	_, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscription})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub: subscription %s does not exist", c.subscription)
	case err != nil:
		return fmt.Errorf("pubsub: inspect subscription %s: %w", c.subscription, err)
	}
	return nil
}

// AnalyticsSubscription feeds the funnel analytics worker.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil || c.ps == nil || c.subscription == "" {
		return nil
	}
	return c.ps.Subscriber(c.subscription)
}

// Publisher accepts a short topic id or a full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	name := topicResourceName(c.project, topic)
	if name == "" {
		return nil
	}
	return c.ps.Publisher(name)
}

// DomainPublisher publishes booking domain events.
func (c *Client) DomainPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.topic)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

func topicResourceName(project, name string) string {
	return resourceName(project, "topics", name)
}

func subscriptionResourceName(project, name string) string {
	return resourceName(project, "subscriptions", name)
}

// resourceName expands a short id to projects/<p>/<kind>/<id>; names that are
// already qualified pass through untouched.
func resourceName(project, kind, name string) string {
	name = strings.TrimSpace(name)
	project = strings.TrimSpace(project)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	case project == "":
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}
