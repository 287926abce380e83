package events

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cafepos-backend/internal/notifier"
)

func readFrame(t *testing.T, reader *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return lines
		}
		lines = append(lines, line)
	}
}

func openStream(t *testing.T, handler http.Handler, query string) (*bufio.Reader, context.CancelFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+query, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	require.Equal(t, []string{": connected"}, readFrame(t, reader))
	return reader, cancel
}

func TestStreamDeliversEvents(t *testing.T) {
	bus := notifier.NewBus(nil)
	reader, cancel := openStream(t, Stream(bus, nil), "/")
	defer cancel()

	event := notifier.NewOrderEvent(notifier.OrderCreated, notifier.OrderSnapshot{ID: "ord-1", Status: "pending", Total: "7.50"})
	bus.Publish(context.Background(), event)

	frame := readFrame(t, reader)
	require.Len(t, frame, 3)
	assert.Equal(t, "id: "+event.ID, frame[0])
	assert.Equal(t, "event: order.created", frame[1])

	var decoded notifier.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame[2], "data: ")), &decoded))
	require.NotNil(t, decoded.Order)
	assert.Equal(t, "ord-1", decoded.Order.ID)
}

func TestStreamFiltersByType(t *testing.T) {
	bus := notifier.NewBus(nil)
	reader, cancel := openStream(t, Stream(bus, nil), "/?types=delivery.created")
	defer cancel()

	bus.Publish(context.Background(), notifier.NewOrderEvent(notifier.OrderCreated, notifier.OrderSnapshot{ID: "ord-1"}))
	bus.Publish(context.Background(), notifier.NewDeliveryCreated(notifier.DeliverySnapshot{ID: "d-1", OrderID: "ord-1"}))

	frame := readFrame(t, reader)
	require.Len(t, frame, 3)
	assert.Equal(t, "event: delivery.created", frame[1])
}

func TestStreamSendsHeartbeat(t *testing.T) {
	bus := notifier.NewBus(nil)
	reader, cancel := openStream(t, streamWithHeartbeat(bus, nil, 20*time.Millisecond), "/")
	defer cancel()

	assert.Equal(t, []string{": ping"}, readFrame(t, reader))
}

func TestStreamRejectsUnknownType(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?types=order.exploded", nil)
	resp := httptest.NewRecorder()
	Stream(notifier.NewBus(nil), nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestStreamUnsubscribesOnDisconnect(t *testing.T) {
	bus := &countingBus{Bus: notifier.NewBus(nil)}
	_, cancel := openStream(t, Stream(bus, nil), "/")
	cancel()

	require.Eventually(t, func() bool { return bus.active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type countingBus struct {
	*notifier.Bus
	mu    sync.Mutex
	count int
}

func (b *countingBus) active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *countingBus) SubscribeAll(handler notifier.Handler) notifier.Unsubscribe {
	b.mu.Lock()
	b.count++
	b.mu.Unlock()
	inner := b.Bus.SubscribeAll(handler)
	return func() {
		inner()
		b.mu.Lock()
		b.count--
		b.mu.Unlock()
	}
}
