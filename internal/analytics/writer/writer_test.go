package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/angelmondragon/cafepos-backend/internal/analytics/types"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewWriterValidation(t *testing.T) {
	if _, err := New(nil, Config{OrderEventsTable: "order_events"}); err == nil {
		t.Fatal("expected error when client missing")
	}
	if _, err := newWriter(&fakeInserter{}, Config{OrderEventsTable: " "}); err == nil {
		t.Fatal("expected error when table missing")
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"foo": "bar"})
	if err != nil {
		t.Fatalf("unexpected error encoding json: %v", err)
	}
	if !nj.Valid {
		t.Fatal("expected json to be marked valid")
	}

	nj, err = EncodeJSON(nil)
	if err != nil {
		t.Fatalf("unexpected error for nil json: %v", err)
	}
	if nj.Valid {
		t.Fatal("expected nil json to be invalid")
	}

	rawMessage := json.RawMessage(`{"order_id":"abc"}`)
	nj, err = EncodeJSON(rawMessage)
	if err != nil {
		t.Fatalf("unexpected error encoding raw json: %v", err)
	}
	if nj.JSONVal != string(rawMessage) {
		t.Fatalf("expected raw json passed through, got %s", nj.JSONVal)
	}
}

func TestWriterRetriesOnTransientError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t, 1)
	fake.responses = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		nil,
	}

	if err := writer.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error writing row: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected two insert attempts, got %d", len(fake.calls))
	}
	if fake.calls[1].table != "order_events" {
		t.Fatalf("expected order_events table on retry, got %s", fake.calls[1].table)
	}
	if len(writer.buffer) != 0 {
		t.Fatal("expected buffer to be empty after success")
	}
}

func TestWriterStopsOnPermanentError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t, 1)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	if err := writer.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "1"}); err == nil {
		t.Fatal("expected error")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(fake.calls))
	}
	if len(writer.buffer) != 1 {
		t.Fatal("failed rows stay buffered for the next flush")
	}
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t, 1)
	unavailable := status.Error(codes.Unavailable, "try later")
	fake.responses = []error{unavailable, unavailable, unavailable, unavailable}

	if err := writer.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "1"}); err == nil {
		t.Fatal("expected error")
	}
	if len(fake.calls) != defaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultMaxAttempts, len(fake.calls))
	}
}

func TestWriterBatching(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t, 2)

	if err := writer.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error on first insert: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no insert before batch full, got %d", len(fake.calls))
	}
	if err := writer.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "2"}); err != nil {
		t.Fatalf("unexpected error on second insert: %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0].rowCount != 2 {
		t.Fatalf("expected a single two-row insert, got %+v", fake.calls)
	}
}

func TestWriterFlush(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t, 10)
	if err := writer.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if err := writer.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected flush to insert once, got %d", len(fake.calls))
	}
	if err := writer.Flush(context.Background()); err != nil {
		t.Fatalf("empty flush: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatal("empty flush should not insert")
	}
}

func TestIsRetryableBigQueryError(t *testing.T) {
	if isRetryableBigQueryError(errors.New("plain")) {
		t.Fatal("plain errors are not retryable")
	}
	if !isRetryableBigQueryError(&googleapi.Error{Code: http.StatusTooManyRequests}) {
		t.Fatal("429 should be retryable")
	}
	if isRetryableBigQueryError(status.Error(codes.InvalidArgument, "bad")) {
		t.Fatal("invalid argument is permanent")
	}
}

func TestWriterResendsOnlyRejectedRows(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t, 3)
	fake.responses = []error{
		cbigquery.PutMultiError{{RowIndex: 1, Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusServiceUnavailable}}}},
		nil,
	}

	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		if err := writer.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: id}); err != nil {
			t.Fatalf("unexpected error writing %s: %v", id, err)
		}
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected two inserts, got %d", len(fake.calls))
	}
	if got := fake.calls[1].eventIDs; len(got) != 1 || got[0] != "evt-2" {
		t.Fatalf("expected only evt-2 to be re-sent, got %v", got)
	}
	if len(writer.buffer) != 0 {
		t.Fatal("expected buffer to be empty after the retry")
	}
}

func TestWriterKeepsPermanentlyRejectedRows(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t, 2)
	fake.responses = []error{
		cbigquery.PutMultiError{{RowIndex: 0, Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusBadRequest}}}},
	}

	_ = writer.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "evt-1"})
	if err := writer.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "evt-2"}); err == nil {
		t.Fatal("expected a permanent rejection to surface")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(fake.calls))
	}
	if len(writer.buffer) != 1 || writer.buffer[0].EventID != "evt-1" {
		t.Fatalf("expected only the rejected row to stay buffered, got %+v", writer.buffer)
	}
}

type insertCall struct {
	table    string
	rowCount int
	eventIDs []string
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
	index     int
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	call := insertCall{table: table, rowCount: len(rows)}
	for _, r := range rows {
		call.eventIDs = append(call.eventIDs, r.(*types.OrderEventRow).EventID)
	}
	f.calls = append(f.calls, call)
	var err error
	if f.index < len(f.responses) {
		err = f.responses[f.index]
	}
	f.index++
	return err
}

func newWriterWithFakeInserter(t *testing.T, batch int) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{}
	writer, err := newWriter(fake, Config{
		OrderEventsTable: "order_events",
		BatchSize:        batch,
		RetryPolicy:      RetryPolicy{InitialBackoff: time.Millisecond, MaximumBackoff: 2 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("construct writer: %v", err)
	}
	return writer, fake
}
