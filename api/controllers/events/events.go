package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/cafepos-backend/api/responses"
	"github.com/angelmondragon/cafepos-backend/internal/notifier"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

const (
	bufferSize        = 64
	heartbeatInterval = 20 * time.Second
)

// Subscriber is the part of the notifier bus the stream needs.
type Subscriber interface {
	SubscribeAll(handler notifier.Handler) notifier.Unsubscribe
}

// Stream pushes notifier events to the client as server-sent events until
// the request context ends. ?types= limits the stream to a comma separated
// list of event types. Events are dropped for a client whose buffer is full.
func Stream(bus Subscriber, logg *logger.Logger) http.HandlerFunc {
	return streamWithHeartbeat(bus, logg, heartbeatInterval)
}

func streamWithHeartbeat(bus Subscriber, logg *logger.Logger, heartbeat time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if bus == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "event stream unavailable"))
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}
		filter, err := parseTypes(r.URL.Query().Get("types"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		events := make(chan notifier.Event, bufferSize)
		unsubscribe := bus.SubscribeAll(func(_ context.Context, event notifier.Event) {
			if len(filter) > 0 && !filter[event.Type] {
				return
			}
			select {
			case events <- event:
			default:
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "event_type", string(event.Type)), "events.client_lagging")
				}
			}
		})
		defer unsubscribe()

		header := w.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case event := <-events:
				if err := writeEvent(w, event); err != nil {
					if logg != nil {
						logg.Warn(logg.WithField(ctx, "error", err.Error()), "events.write_failed")
					}
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event notifier.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
	return err
}

func parseTypes(raw string) (map[notifier.Type]bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	filter := make(map[notifier.Type]bool)
	for _, part := range strings.Split(raw, ",") {
		t := notifier.Type(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !t.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event type").
				WithDetails(map[string]string{"types": string(t)})
		}
		filter[t] = true
	}
	return filter, nil
}
