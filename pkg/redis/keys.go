package redis

import "strings"

// Every key the backend writes lives under cafepos:<space>:...
const rootNamespace = "cafepos"

type keyspace string

const (
	spaceIdempotency keyspace = "idem"
	spaceRateLimit   keyspace = "rl"
	spaceSequence    keyspace = "seq"
	spaceLock        keyspace = "lock"
)

func buildKey(space keyspace, parts ...string) string {
	segments := []string{rootNamespace, string(space)}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}

// IdempotencyKey is where a replayable request or processed event is
// remembered. scope separates operations and consumers.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(spaceIdempotency, scope, id)
}

// RateLimitKey holds one fixed-window counter.
func (c *Client) RateLimitKey(scope string) string {
	return buildKey(spaceRateLimit, scope)
}

// SequenceKey backs the order number counter called name.
func (c *Client) SequenceKey(name string) string {
	return buildKey(spaceSequence, name)
}

func (c *Client) LockKey(name string) string {
	return buildKey(spaceLock, name)
}
