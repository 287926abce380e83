package outbox

import (
	"context"
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event. System jobs leave it nil.
type ActorRef struct {
	StaffID string `json:"staffId,omitempty"`
	Role    string `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

type actorCtxKey struct{}

// WithActor stores the acting staff member on ctx for later Emit calls.
func WithActor(ctx context.Context, actor ActorRef) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// ActorFromContext returns the actor placed by WithActor, if any.
func ActorFromContext(ctx context.Context) *ActorRef {
	if ctx == nil {
		return nil
	}
	if actor, ok := ctx.Value(actorCtxKey{}).(ActorRef); ok {
		return &actor
	}
	return nil
}
