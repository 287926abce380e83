package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/cafepos-backend/internal/auth"
	"github.com/angelmondragon/cafepos-backend/internal/orders"
	"github.com/angelmondragon/cafepos-backend/internal/weborders"
	pkgAuth "github.com/angelmondragon/cafepos-backend/pkg/auth"
	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

func (stubAuthService) CreateStaff(ctx context.Context, req auth.CreateStaffRequest) (*auth.StaffDTO, error) {
	return &auth.StaffDTO{}, nil
}

type stubOrdersService struct{}

func (stubOrdersService) Create(ctx context.Context, draft orders.Draft) (*models.Order, error) {
	return &models.Order{ID: "ord-1", Status: enums.OrderStatusPending}, nil
}

func (stubOrdersService) Get(ctx context.Context, id string) (*models.Order, error) {
	return &models.Order{ID: id, Status: enums.OrderStatusPending}, nil
}

func (stubOrdersService) List(ctx context.Context) ([]models.Order, error) {
	return nil, nil
}

func (stubOrdersService) ListPage(ctx context.Context, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, nil
}

func (stubOrdersService) Exists(ctx context.Context, id string) (bool, error) {
	return true, nil
}

func (stubOrdersService) UpdateStatus(ctx context.Context, id string, status enums.OrderStatus) (*models.Order, error) {
	return &models.Order{ID: id, Status: status}, nil
}

func (stubOrdersService) UpdateStatusWithTag(ctx context.Context, id string, status enums.OrderStatus, tag *string) (*models.Order, error) {
	return &models.Order{ID: id, Status: status, StatusTag: tag}, nil
}

func (stubOrdersService) UpdateItems(ctx context.Context, id string, items []orders.LineItemInput) (*models.Order, error) {
	return &models.Order{ID: id, Status: enums.OrderStatusPending}, nil
}

func (stubOrdersService) Delete(ctx context.Context, id string) error {
	return nil
}

type stubWebOrdersService struct{}

func (stubWebOrdersService) Intake(ctx context.Context, input weborders.IntakeInput) (*models.WebOrder, error) {
	return &models.WebOrder{ID: input.ID, Status: enums.WebOrderStatusPending}, nil
}

func (stubWebOrdersService) Get(ctx context.Context, id string) (*models.WebOrder, error) {
	return &models.WebOrder{ID: id, Status: enums.WebOrderStatusPending}, nil
}

func (stubWebOrdersService) List(ctx context.Context) ([]models.WebOrder, error) {
	return nil, nil
}

func (stubWebOrdersService) ImportPending(ctx context.Context) (weborders.ImportResult, error) {
	return weborders.ImportResult{}, nil
}

func (stubWebOrdersService) ProjectStatusToWeb(ctx context.Context, orderID string, status enums.OrderStatus) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
		WebOrders: config.WebOrdersConfig{ChannelKey: "channel-secret"},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:    cfg,
		Logger:    logg,
		DB:        stubPinger{},
		Gatherer:  prometheus.NewRegistry(),
		Auth:      stubAuthService{},
		Orders:    stubOrdersService{},
		WebOrders: stubWebOrdersService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.StaffRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		StaffID: uuid.New(),
		Name:    "Test Staff",
		Role:    role,
		JTI:     uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthLiveIsPublic(t *testing.T) {
	resp := serve(newTestRouter(testConfig()), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Cafepos-Env") != "test" {
		t.Fatalf("expected env header, got %q", resp.Header().Get("X-Cafepos-Env"))
	}
}

func TestHealthReadyPingsDependencies(t *testing.T) {
	resp := serve(newTestRouter(testConfig()), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMetricsEndpointIsServed(t *testing.T) {
	resp := serve(newTestRouter(testConfig()), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestLoginIsPublic(t *testing.T) {
	body := strings.NewReader(`{"email":"a@b.co","password":"hunter22"}`)
	resp := serve(newTestRouter(testConfig()), httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected stubbed 401 from login got %d", resp.Code)
	}
}

func TestOrdersRequireJWT(t *testing.T) {
	resp := serve(newTestRouter(testConfig()), httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestRolePermissions(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	orderBody := `{"fulfillmentType":"local","customer":{"name":"Ana"},"lineItems":[{"name":"Latte","quantity":1,"unitPrice":"3.50"}]}`

	cases := []struct {
		name   string
		role   enums.StaffRole
		method string
		path   string
		body   string
		want   int
	}{
		{name: "driver lists orders", role: enums.StaffRoleDriver, method: http.MethodGet, path: "/api/v1/orders", want: http.StatusOK},
		{name: "kitchen cannot create orders", role: enums.StaffRoleKitchen, method: http.MethodPost, path: "/api/v1/orders", body: orderBody, want: http.StatusForbidden},
		{name: "cashier creates orders", role: enums.StaffRoleCashier, method: http.MethodPost, path: "/api/v1/orders", body: orderBody, want: http.StatusCreated},
		{name: "kitchen moves status", role: enums.StaffRoleKitchen, method: http.MethodPut, path: "/api/v1/orders/ord-1/status", body: `{"status":"preparing"}`, want: http.StatusOK},
		{name: "driver cannot move order status", role: enums.StaffRoleDriver, method: http.MethodPut, path: "/api/v1/orders/ord-1/status", body: `{"status":"ready"}`, want: http.StatusForbidden},
		{name: "cashier cannot delete", role: enums.StaffRoleCashier, method: http.MethodDelete, path: "/api/v1/orders/ord-1", want: http.StatusForbidden},
		{name: "manager deletes", role: enums.StaffRoleManager, method: http.MethodDelete, path: "/api/v1/orders/ord-1", want: http.StatusNoContent},
		{name: "cashier cannot create staff", role: enums.StaffRoleCashier, method: http.MethodPost, path: "/api/v1/staff", body: `{}`, want: http.StatusForbidden},
		{name: "kitchen cannot import", role: enums.StaffRoleKitchen, method: http.MethodPost, path: "/api/v1/web-orders/import", want: http.StatusForbidden},
		{name: "manager imports", role: enums.StaffRoleManager, method: http.MethodPost, path: "/api/v1/web-orders/import", want: http.StatusOK},
		{name: "sync without feed", role: enums.StaffRoleManager, method: http.MethodPost, path: "/api/v1/web-orders/sync", want: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, tc.role))
			resp := serve(router, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d got %d: %s", tc.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestWebOrderIntakeRequiresChannelKey(t *testing.T) {
	router := newTestRouter(testConfig())
	body := `{"id":"w-1","status":"web-pending","customer":{"name":"Rui"},"items":[{"name":"Mocha","quantity":1,"unitPrice":"4.20"}]}`

	resp := serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/web-orders", strings.NewReader(body)))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without channel key got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/web-orders", strings.NewReader(body))
	req.Header.Set("X-Channel-Key", "channel-secret")
	resp = serve(router, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 with channel key got %d: %s", resp.Code, resp.Body.String())
	}
}
