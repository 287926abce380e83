package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
)

type memoryReplays struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryReplays() *memoryReplays {
	return &memoryReplays{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryReplays) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryReplays) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryReplays) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("cafepos:idem:%s:%s", scope, id)
}

func (m *memoryReplays) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func routed(method, url, pattern, key string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestReplayableOperations(t *testing.T) {
	tests := []struct {
		method string
		path   string
		op     string
		ttl    time.Duration
	}{
		{http.MethodPost, "/api/v1/web-orders", "web_order.intake", channelReplayTTL},
		{http.MethodPost, "/api/v1/orders", "order.create", tillReplayTTL},
		{http.MethodPut, "/api/v1/orders/{orderId}/items", "order.items", tillReplayTTL},
		{http.MethodPut, "/api/v1/orders/8f1c/items", "order.items", tillReplayTTL},
		{http.MethodPost, "/api/v1/deliveries", "delivery.create", tillReplayTTL},
		{http.MethodPut, "/api/v1/orders/{orderId}/status", "", 0},
		{http.MethodPost, "/api/v1/auth/login", "", 0},
		{http.MethodPut, "/api/v1/orders//items", "", 0},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		route, ok := lookupReplayable(req)
		assert.Equal(t, tt.op != "", ok, tt.path)
		assert.Equal(t, tt.op, route.op, tt.path)
		assert.Equal(t, tt.ttl, route.ttl, tt.path)
	}
}

func TestIdempotencyRequiresKey(t *testing.T) {
	ran := false
	handler := Idempotency(newMemoryReplays(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, routed(http.MethodPost, "/api/v1/orders", "/api/v1/orders", "", strings.NewReader(`{"items":[]}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, ran)
}

func TestIdempotencyReplaysFirstAnswer(t *testing.T) {
	store := newMemoryReplays()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"sequenceNumber":42}}`))
	}))

	body := `{"fulfillmentType":"pickup","items":[{"name":"Latte","quantity":1}]}`
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, routed(http.MethodPost, "/api/v1/orders", "/api/v1/orders", "till-7", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	again := httptest.NewRecorder()
	handler.ServeHTTP(again, routed(http.MethodPost, "/api/v1/orders", "/api/v1/orders", "till-7", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.Equal(t, "true", again.Header().Get(replayedHeader))
	assert.JSONEq(t, `{"data":{"sequenceNumber":42}}`, again.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	handler := Idempotency(newMemoryReplays(), nil)(okHandler(http.StatusOK))

	handler.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/orders", "/api/v1/orders", "till-8", strings.NewReader(`{"n":1}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, routed(http.MethodPost, "/api/v1/orders", "/api/v1/orders", "till-8", strings.NewReader(`{"n":2}`)))

	require.Equal(t, http.StatusConflict, rec.Code)
	var payload struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
	assert.Equal(t, "order.create", payload.Error.Details["operation"])
}

func TestIdempotencyDoesNotKeepServerErrors(t *testing.T) {
	store := newMemoryReplays()
	statuses := []int{http.StatusServiceUnavailable, http.StatusAccepted}
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statuses[calls])
		calls++
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/web-orders", "/api/v1/web-orders", "W-9", strings.NewReader(`{"id":"W-9"}`)))
	}

	assert.Equal(t, 2, calls, "a retry after a 503 must reach the handler")
	require.Len(t, store.data, 1)
	for key, ttl := range store.ttls {
		assert.Contains(t, key, "web_order.intake|channel|")
		assert.Equal(t, channelReplayTTL, ttl)
	}
}

func TestIdempotencyKeysArePerStaffAndPerOrder(t *testing.T) {
	store := newMemoryReplays()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	staffA, staffB := uuid.New(), uuid.New()
	send := func(staff uuid.UUID, orderID string) {
		req := routed(http.MethodPut, "/api/v1/orders/"+orderID+"/items", "/api/v1/orders/{orderId}/items", "same", strings.NewReader(`{"items":[]}`))
		req = req.WithContext(WithStaff(req.Context(), Staff{ID: staff, Role: enums.StaffRoleCashier}))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	send(staffA, "order-1")
	send(staffB, "order-1")
	send(staffA, "order-2")
	send(staffA, "order-1")

	assert.Equal(t, 3, calls)
}

func TestIdempotencyPassesOtherRoutesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Idempotency(newMemoryReplays(), nil)(okHandler(http.StatusOK)).
		ServeHTTP(rec, routed(http.MethodGet, "/api/v1/orders", "/api/v1/orders", "", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
