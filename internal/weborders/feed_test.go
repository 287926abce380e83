package weborders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cafepos-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
)

const feedBody = `{"orders":[
 {"id":"W-10","status":"web-pending","customer":{"name":"Ana","address":"Rua A, 10"},"items":[{"name":"Latte","quantity":2,"unitPrice":"5.50"}]},
 {"id":"W-11","customer":{"name":"Bia","address":"Rua B, 2"},"items":[{"name":"Mocha","quantity":1,"unitPrice":4.75}]}
]}`

type attempts struct {
	outcomes []string
}

func (a *attempts) IncFetchAttempt(outcome string) {
	a.outcomes = append(a.outcomes, outcome)
}

func feedConfig(url string) config.WebOrdersConfig {
	return config.WebOrdersConfig{
		FeedURL:      url,
		FeedToken:    "secret",
		MaxAttempts:  3,
		AttemptLimit: time.Second,
		BaseBackoff:  time.Millisecond,
		MaxBackoff:   5 * time.Millisecond,
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(feedBody))
	}))
	defer server.Close()

	rec := &attempts{}
	h := newHarness(t)
	fetcher, err := NewFetcher(feedConfig(server.URL), h.svc, server.Client(), rec, nil)
	require.NoError(t, err)

	orders, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "4.75", orders[1].Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, []string{"error", "error", "success"}, rec.outcomes)
}

func TestFetchExhaustionIsSyncFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	h := newHarness(t)
	fetcher, err := NewFetcher(feedConfig(server.URL), h.svc, server.Client(), nil, nil)
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSyncFailure))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	h := newHarness(t)
	fetcher, err := NewFetcher(feedConfig(server.URL), h.svc, server.Client(), nil, nil)
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSyncFailure))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchAttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	cfg := feedConfig(server.URL)
	cfg.MaxAttempts = 2
	cfg.AttemptLimit = 20 * time.Millisecond

	h := newHarness(t)
	fetcher, err := NewFetcher(cfg, h.svc, server.Client(), nil, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = fetcher.Fetch(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSyncFailure))
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestSyncQueuesAndImports(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	}))
	defer server.Close()

	h := newHarness(t)
	fetcher, err := NewFetcher(feedConfig(server.URL), h.svc, server.Client(), nil, nil)
	require.NoError(t, err)

	result, err := fetcher.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Import.Imported)

	result, err = fetcher.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Import.Imported)
}

func TestNewFetcherValidates(t *testing.T) {
	_, err := NewFetcher(config.WebOrdersConfig{}, nil, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewFetcher(config.WebOrdersConfig{FeedURL: "http://feed"}, nil, nil, nil, nil)
	assert.Error(t, err)
}
