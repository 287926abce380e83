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

	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

// Client wraps a Pub/Sub v2 client with the cafepos topics and
// subscriptions: order events from the outbox relay, notifier fan-out
// between API replicas, and the analytics feed.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var errProjectIDRequired = errors.New("gcp project id is required")

// resource is one configured topic or subscription.
type resource struct {
	kind string
	name string
}

// resources lists what cfg names, topics first. Blank names are skipped;
// publisher-only processes configure no subscriptions.
func resources(cfg config.PubSubConfig) []resource {
	var out []resource
	add := func(kind, name string) {
		if n := strings.TrimSpace(name); n != "" {
			out = append(out, resource{kind: kind, name: n})
		}
	}
	add(kindTopic, cfg.OrdersTopic)
	add(kindTopic, cfg.SyncTopic)
	add(kindSubscription, cfg.SyncSubscription)
	add(kindSubscription, cfg.AnalyticsSubscription)
	return out
}

// NewClient dials Pub/Sub and fails unless every configured topic and
// subscription exists. Neither is created here.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, gcp.ProjectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: ps, projectID: gcp.ProjectID, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"orders_topic": cfg.OrdersTopic,
			"sync_topic":   cfg.SyncTopic,
		}), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// Ping checks that every configured topic and subscription still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, r := range resources(c.cfg) {
		if err := c.lookup(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) lookup(ctx context.Context, r resource) error {
	full := resourceName(c, r.name, r.kind)
	if full == "" {
		return fmt.Errorf("%s %q not configured", r.kind, r.name)
	}
	var err error
	if r.kind == kindTopic {
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	} else {
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(r.kind, "s"), r.name)
	default:
		return fmt.Errorf("checking %s %q: %w", strings.TrimSuffix(r.kind, "s"), r.name, err)
	}
}

// Subscription returns a subscriber for an id or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	if full := c.subscriptionResourceName(name); full != "" {
		return c.client.Subscriber(full)
	}
	return nil
}

// SyncSubscription receives notifier events relayed from sibling processes.
func (c *Client) SyncSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.SyncSubscription)
}

// AnalyticsSubscription receives outbox events for the BigQuery sink.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if full := c.topicResourceName(name); full != "" {
		return c.client.Publisher(full)
	}
	return nil
}

func (c *Client) SyncPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.SyncTopic)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) subscriptionResourceName(name string) string {
	return resourceName(c, name, kindSubscription)
}

func (c *Client) topicResourceName(name string) string {
	return resourceName(c, name, kindTopic)
}

// resourceName expands a short id to projects/<p>/<kind>/<id>. Full names
// of the right kind pass through.
func resourceName(c *Client, name, kind string) string {
	n := strings.TrimSpace(name)
	if c == nil || n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(c.projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, kind, n)
}
