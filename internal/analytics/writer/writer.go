package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/cafepos-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/cafepos-backend/pkg/bigquery"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

type Config struct {
	OrderEventsTable string
	BatchSize        int
	RetryPolicy      RetryPolicy
}

// RetryPolicy bounds how often one batch of order events is re-sent.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = defaultMaximumBackoff
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter streams order event rows into one table. Rows are buffered
// up to the batch size. When BigQuery rejects part of a batch only the
// rejected rows are kept and re-sent; every row carries its event id as the
// insert id, so a re-sent row is not stored twice.
type BigQueryWriter struct {
	client    tableInserter
	table     string
	batchSize int
	policy    RetryPolicy

	mu     sync.Mutex
	buffer []types.OrderEventRow
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return newWriter(client, cfg)
}

func newWriter(client tableInserter, cfg Config) (*BigQueryWriter, error) {
	table := strings.TrimSpace(cfg.OrderEventsTable)
	if table == "" {
		return nil, errors.New("order events table is required")
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: batch,
		policy:    cfg.RetryPolicy.withDefaults(),
	}, nil
}

// InsertOrderEvent buffers row and writes the batch once it is full.
func (w *BigQueryWriter) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, row)
	if len(w.buffer) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// flushLocked leaves in the buffer exactly the rows that were not stored.
func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	backoff := retry.NewExponential(w.policy.InitialBackoff)
	backoff = retry.WithCappedDuration(w.policy.MaximumBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(w.policy.MaxAttempts-1), backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := w.client.InsertRows(ctx, w.table, rowValues(w.buffer))
		if err == nil {
			w.buffer = w.buffer[:0]
			return nil
		}
		w.buffer = rejectedRows(w.buffer, err)
		if isRetryableBigQueryError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("insert %s rows: %w", w.table, err)
	}
	return nil
}

func rowValues(rows []types.OrderEventRow) []any {
	out := make([]any, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

// rejectedRows narrows rows to the ones a partial insert failure names.
// Any other error means nothing was stored.
func rejectedRows(rows []types.OrderEventRow, err error) []types.OrderEventRow {
	var rejected cbigquery.PutMultiError
	if !errors.As(err, &rejected) || len(rejected) == 0 {
		return rows
	}
	kept := make([]types.OrderEventRow, 0, len(rejected))
	for _, r := range rejected {
		if r.RowIndex >= 0 && r.RowIndex < len(rows) {
			kept = append(kept, rows[r.RowIndex])
		}
	}
	return kept
}

// isRetryableBigQueryError is true only when every underlying failure is
// transient.
func isRetryableBigQueryError(err error) bool {
	var (
		multi    cbigquery.MultiError
		rejected cbigquery.PutMultiError
		apiErr   *googleapi.Error
		grpcErr  interface{ GRPCStatus() *status.Status }
	)
	switch {
	case err == nil:
		return false
	case errors.As(err, &rejected):
		return len(rejected) > 0 && allRetryable(len(rejected), func(i int) error { return rejected[i].Errors })
	case errors.As(err, &multi):
		return len(multi) > 0 && allRetryable(len(multi), func(i int) error { return multi[i] })
	case errors.As(err, &apiErr):
		return retryableHTTP[apiErr.Code]
	case errors.As(err, &grpcErr):
		st := grpcErr.GRPCStatus()
		return st != nil && retryableGRPC[st.Code()]
	}
	return false
}

func allRetryable(n int, at func(int) error) bool {
	for i := range n {
		if !isRetryableBigQueryError(at(i)) {
			return false
		}
	}
	return true
}

var retryableHTTP = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusRequestTimeout:      true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var retryableGRPC = map[codes.Code]bool{
	codes.Aborted:           true,
	codes.DeadlineExceeded:  true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unavailable:       true,
}

// EncodeJSON turns an event payload into a value for a BigQuery JSON column.
// Empty input becomes NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
