package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/cafepos-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: "till-1"}

	assert.Equal(t, "projects/till-1/topics/cafepos-sync", c.topicResourceName(" cafepos-sync "))
	assert.Equal(t, "projects/till-1/subscriptions/api-a", c.subscriptionResourceName("api-a"))
	assert.Equal(t, "projects/other/topics/x", c.topicResourceName("projects/other/topics/x"))
	assert.Empty(t, c.topicResourceName(""))
	assert.Empty(t, (&Client{}).topicResourceName("x"))

	var nilClient *Client
	assert.Empty(t, nilClient.subscriptionResourceName("x"))
	assert.Nil(t, nilClient.Publisher("x"))
}

func TestResourcesListTopicsBeforeSubscriptions(t *testing.T) {
	got := resources(config.PubSubConfig{
		OrdersTopic:      "cafepos-order-events",
		SyncTopic:        " ",
		SyncSubscription: " sync-a ",
	})
	assert.Equal(t, []resource{
		{kind: kindTopic, name: "cafepos-order-events"},
		{kind: kindSubscription, name: "sync-a"},
	}, got)
	assert.Empty(t, resources(config.PubSubConfig{}))
}

func TestPingWithoutClientFails(t *testing.T) {
	assert.Error(t, (&Client{}).Ping(context.Background()))
	var nilClient *Client
	assert.Error(t, nilClient.Ping(context.Background()))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}

func TestClientOptions(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{}`, ApplicationCredentials: "/tmp/x"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{}))
}
