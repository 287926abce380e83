package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

// Logging writes one line per finished request with its chi route, status
// and duration. Order and delivery ids from the path are bound as fields.
// Health checks and scrapes log at debug level; server errors at warn.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			ctx = routeFields(ctx, logg, r)
			ctx = logg.WithFields(ctx, map[string]any{
				"status":      rec.status,
				"bytes":       rec.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			switch {
			case quietPath(r.URL.Path):
				logg.Debug(ctx, "request.complete")
			case rec.status >= http.StatusInternalServerError:
				logg.Warn(ctx, "request.complete")
			default:
				logg.Info(ctx, "request.complete")
			}
		})
	}
}

func quietPath(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health/")
}

// routeFields reads the route chi matched. It is only filled in once the
// router has run.
func routeFields(ctx context.Context, logg *logger.Logger, r *http.Request) context.Context {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return ctx
	}
	if pattern := rc.RoutePattern(); pattern != "" {
		ctx = logg.WithField(ctx, "route", pattern)
	}
	if id := rc.URLParam("orderId"); id != "" {
		ctx = logg.WithOrderID(ctx, id)
	}
	if id := rc.URLParam("deliveryId"); id != "" {
		ctx = logg.WithDeliveryID(ctx, id)
	}
	if id := rc.URLParam("webOrderId"); id != "" {
		ctx = logg.WithField(ctx, "web_order_id", id)
	}
	return ctx
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Flush keeps the order event stream working behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
