package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
)

type menuLine struct {
	Name      string          `json:"name" validate:"required,max=5"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"money"`
}

type statusBody struct {
	Status enums.OrderStatus `json:"status" validate:"required,enum"`
}

func decodeDetails(t *testing.T, body string, dest any) map[string]string {
	t.Helper()
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), dest)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected a validation error")
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok, "details were %T", typed.Details())
	return details
}

func TestDecodeReportsFieldsByJSONName(t *testing.T) {
	details := decodeDetails(t, `{"name":"","quantity":0,"unitPrice":"1.50"}`, &menuLine{})
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be greater than 0", details["quantity"])
	assert.NotContains(t, details, "unitPrice")
}

func TestMoneyTagRejectsNegativeAndSubCentPrices(t *testing.T) {
	for _, price := range []string{`"-0.50"`, `"3.755"`} {
		details := decodeDetails(t, `{"name":"Latte","quantity":1,"unitPrice":`+price+`}`, &menuLine{})
		assert.Contains(t, details["unitPrice"], "at most 2 decimals", price)
	}

	var ok menuLine
	require.NoError(t, DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Latte","quantity":1,"unitPrice":"3.75"}`)), &ok))
	assert.True(t, ok.UnitPrice.Equal(decimal.RequireFromString("3.75")))
}

func TestEnumTagRejectsUnknownStatus(t *testing.T) {
	details := decodeDetails(t, `{"status":"teleported"}`, &statusBody{})
	assert.Equal(t, `"teleported" is not a known value`, details["status"])

	var body statusBody
	require.NoError(t, DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"ready"}`)), &body))
	assert.Equal(t, enums.OrderStatusReady, body.Status)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Tea","quantity":1,"unitPrice":"2","extra":true}`))
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &menuLine{}), pkgerrors.CodeValidation))
}

func TestQueryInt(t *testing.T) {
	value, err := QueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, value)

	_, err = QueryInt(httptest.NewRequest(http.MethodGet, "/?limit=500", nil), "limit", 25, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = QueryInt(httptest.NewRequest(http.MethodGet, "/?limit=ten", nil), "limit", 25, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestQueryTextCutsOnRunes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?orderId=%20caf%C3%A9-42%20", nil)
	assert.Equal(t, "café", QueryText(req, "orderId", 4))
	assert.Equal(t, "café-42", QueryText(req, "orderId", 0))
}

func TestPathUUID(t *testing.T) {
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("deliveryId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	_, err := PathUUID(withParam("nope"), "deliveryId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = PathUUID(withParam(" "), "deliveryId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = PathUUID(withParam("4f9c4a34-3f55-4c1f-9d55-7f0c7d6c2b11"), "deliveryId")
	assert.NoError(t, err)
}
