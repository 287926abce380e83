package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/cafepos-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/cafepos-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	tillReplayTTL    = 24 * time.Hour
	channelReplayTTL = 7 * 24 * time.Hour
)

// replayable is a write that clients may retry with the same
// Idempotency-Key. Template segments in braces match any single segment.
type replayable struct {
	op       string
	method   string
	template string
	ttl      time.Duration
}

var replayables = []replayable{
	{op: "order.create", method: http.MethodPost, template: "/api/v1/orders", ttl: tillReplayTTL},
	{op: "order.items", method: http.MethodPut, template: "/api/v1/orders/{orderId}/items", ttl: tillReplayTTL},
	{op: "delivery.create", method: http.MethodPost, template: "/api/v1/deliveries", ttl: tillReplayTTL},
	{op: "staff.create", method: http.MethodPost, template: "/api/v1/staff", ttl: tillReplayTTL},
	// Online channels retry for days after an outage.
	{op: "web_order.intake", method: http.MethodPost, template: "/api/v1/web-orders", ttl: channelReplayTTL},
}

type storedReply struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first answer to a replayable write. Answers of 500
// and above are not kept, so a retry after an outage runs the write again.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := lookupReplayable(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required").
					WithDetails(map[string]string{"operation": route.op}))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := sha256.Sum256(body)
			requestHash := hex.EncodeToString(fingerprint[:])
			key := store.IdempotencyKey(replayScope(r, route), clientKey)

			prior, err := loadReply(r, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if prior != nil {
				if prior.RequestHash != requestHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body").
						WithDetails(map[string]string{"operation": route.op}))
					return
				}
				prior.write(w)
				return
			}

			capture := &replyRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			if capture.status >= http.StatusInternalServerError {
				return
			}

			payload, err := json.Marshal(storedReply{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: requestHash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, key, string(payload), route.ttl)
			}
			if err != nil && logg != nil {
				logg.Error(logg.WithField(ctx, "operation", route.op), "idempotency.persist_failed", err)
			}
		})
	}
}

func loadReply(r *http.Request, store pkgredis.IdempotencyStore, key string) (*storedReply, error) {
	raw, err := store.Get(r.Context(), key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var reply storedReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &reply, nil
}

func (s *storedReply) write(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// replayScope keeps keys apart per operation, caller and target resource.
// Channel pushes carry no staff identity and share one caller.
func replayScope(r *http.Request, route replayable) string {
	caller := StaffIDFromContext(r.Context())
	if caller == "" {
		caller = "channel"
	}
	return strings.Join([]string{route.op, caller, r.URL.Path}, "|")
}

func lookupReplayable(r *http.Request) (replayable, bool) {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		// Mid-routing the pattern still ends in a wildcard.
		if pattern := rctx.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			path = pattern
		}
	}
	for _, route := range replayables {
		if route.method == r.Method && matchTemplate(route.template, path) {
			return route, true
		}
	}
	return replayable{}, false
}

func matchTemplate(template, path string) bool {
	want := strings.Split(strings.Trim(template, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, segment := range want {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if segment != got[i] {
			return false
		}
	}
	return true
}

type replyRecorder struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *replyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *replyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
