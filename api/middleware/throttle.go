package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/cafepos-backend/api/responses"
	"github.com/angelmondragon/cafepos-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

// windowCounter is satisfied by *redis.Client.
type windowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// throttleRule counts requests that share one value of a request attribute.
// Rules whose key comes from the JSON body set fromBody.
type throttleRule struct {
	dimension string
	limit     int
	fromBody  bool
	key       func(r *http.Request, body []byte) string
}

// Throttle is a fixed-window limit for one surface of the API.
type Throttle struct {
	surface string
	window  time.Duration
	rules   []throttleRule
}

// LoginThrottle limits sign-in attempts per source address and per email.
// Emails are hashed before they reach the counter key.
func LoginThrottle(cfg config.AuthRateLimitConfig) Throttle {
	return Throttle{
		surface: "login",
		window:  cfg.LoginWindow,
		rules: []throttleRule{
			{dimension: "ip", limit: cfg.LoginIPLimit, key: sourceAddress},
			{dimension: "email", limit: cfg.LoginEmailLimit, fromBody: true, key: func(_ *http.Request, body []byte) string {
				email := strings.ToLower(strings.TrimSpace(bodyField(body, "email")))
				if email == "" {
					return ""
				}
				return digest(email)
			}},
		},
	}
}

// IntakeThrottle limits web order pushes per source address and per sales
// channel. Pushes without a channel count against "web".
func IntakeThrottle(cfg config.AuthRateLimitConfig) Throttle {
	return Throttle{
		surface: "web_order_intake",
		window:  cfg.IntakeWindow,
		rules: []throttleRule{
			{dimension: "ip", limit: cfg.IntakeIPLimit, key: sourceAddress},
			{dimension: "channel", limit: cfg.IntakeChannelLimit, fromBody: true, key: func(_ *http.Request, body []byte) string {
				channel := strings.ToLower(strings.TrimSpace(bodyField(body, "channel")))
				if channel == "" {
					return "web"
				}
				return channel
			}},
		},
	}
}

func (t Throttle) active() []throttleRule {
	if t.window <= 0 {
		return nil
	}
	var out []throttleRule
	for _, rule := range t.rules {
		if rule.limit > 0 {
			out = append(out, rule)
		}
	}
	return out
}

func (t Throttle) scope(rule throttleRule, value string) string {
	return t.surface + ":" + rule.dimension + ":" + value
}

// Limit enforces the throttle's rules in order and answers 429 with a
// Retry-After header on the first rule that is over its limit.
func Limit(t Throttle, counter windowCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	rules := t.active()
	return func(next http.Handler) http.Handler {
		if len(rules) == 0 || counter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			var body []byte
			for _, rule := range rules {
				if rule.fromBody && body == nil {
					raw, err := io.ReadAll(r.Body)
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
						return
					}
					body = raw
					r.Body = io.NopCloser(bytes.NewReader(body))
				}
				value := rule.key(r, body)
				if value == "" {
					continue
				}
				allowed, count, err := counter.FixedWindowAllow(ctx, t.scope(rule, value), int64(rule.limit), t.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					t.reject(ctx, logg, w, rule, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (t Throttle) reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, rule throttleRule, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"surface":   t.surface,
			"dimension": rule.dimension,
			"attempts":  count,
			"limit":     rule.limit,
		}), "throttle.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(t.window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
		WithDetails(map[string]string{"limit": rule.dimension}))
}

func sourceAddress(r *http.Request, _ []byte) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func bodyField(body []byte, name string) string {
	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) != nil {
		return ""
	}
	var value string
	if json.Unmarshal(fields[name], &value) != nil {
		return ""
	}
	return value
}

func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
