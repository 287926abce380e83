package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeIllegalTransition, status: http.StatusConflict, publicMsg: "status transition not allowed", detailsOK: true},
		{code: CodeSyncFailure, status: http.StatusBadGateway, publicMsg: "order sync failed", retryable: true, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeSyncFailure, cause, "fetch web orders")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeSyncFailure {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}

	outer := fmt.Errorf("import: %w", wrapped)
	if !IsCode(outer, CodeSyncFailure) {
		t.Fatal("expected IsCode to find the typed error through fmt wrapping")
	}
	if IsCode(outer, CodeNotFound) {
		t.Fatal("unexpected code match")
	}
}

func TestDumpCapturesPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_sequence", TableName: "orders", Message: "duplicate key value"}
	err := Wrap(CodeConflict, pgErr, "insert order")

	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_orders_sequence" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %d", len(dump.Chain))
	}
	fields := dump.Fields()
	if fields["pg_table"] != "orders" {
		t.Fatalf("expected pg_table field, got %v", fields["pg_table"])
	}
}

func TestDumpUntypedDefaultsToInternal(t *testing.T) {
	dump := Dump(stdErrors.New("plain"))
	if dump.Code != CodeInternal || !dump.Retryable {
		t.Fatalf("unexpected dump %+v", dump)
	}
	if _, ok := dump.Fields()["pg_code"]; ok {
		t.Fatal("empty pg fields should be omitted")
	}
}

func TestIllegalTransitionCarriesStatuses(t *testing.T) {
	err := IllegalTransition("order", "ready", "pending")
	if err.Code() != CodeIllegalTransition {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if err.Message() != "cannot move order from ready to pending" {
		t.Fatalf("unexpected message %q", err.Message())
	}
	details, ok := err.Details().(map[string]string)
	if !ok || details["from"] != "ready" || details["to"] != "pending" {
		t.Fatalf("unexpected details %#v", err.Details())
	}

	if got := IllegalTransition("delivery", "delivered", "delivered").Message(); got != "delivery is already delivered" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestNotFoundWrapsCause(t *testing.T) {
	cause := stdErrors.New("record not found")
	err := NotFound("web order", cause)
	if !IsCode(err, CodeNotFound) || !stdErrors.Is(err, cause) {
		t.Fatalf("expected a NOT_FOUND wrapping the cause, got %v", err)
	}
	if err.Message() != "web order not found" {
		t.Fatalf("unexpected message %q", err.Message())
	}
}
