package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"powershare/internal/apperror"
	"powershare/internal/auth"
	"powershare/internal/config"
	"powershare/internal/models"
	"powershare/internal/services"
	"powershare/internal/websocket"
)

type stubAccountService struct {
	registerFn func(ctx context.Context, req services.RegisterRequest) (string, error)
	loginFn    func(ctx context.Context, email, password string) (string, error)
	meFn       func(ctx context.Context, userID string) (models.User, error)
}

func (s stubAccountService) Register(ctx context.Context, req services.RegisterRequest) (string, error) {
	return s.registerFn(ctx, req)
}

func (s stubAccountService) Login(ctx context.Context, email, password string) (string, error) {
	return s.loginFn(ctx, email, password)
}

func (s stubAccountService) Me(ctx context.Context, userID string) (models.User, error) {
	return s.meFn(ctx, userID)
}

// ResolveEmail maps "<id>@example.com" to "<id>"; anything else is unknown.
func (s stubAccountService) ResolveEmail(_ context.Context, email string) (string, error) {
	const suffix = "@example.com"
	if len(email) > len(suffix) && email[len(email)-len(suffix):] == suffix {
		return email[:len(email)-len(suffix)], nil
	}
	return "", apperror.Unauthorized("user not found")
}

type stubGridService struct {
	createFn        func(ctx context.Context, req services.CreateGridRequest) (string, error)
	fetchFn         func(ctx context.Context, ownerID string) (models.Grid, error)
	unitStatusFn    func(ctx context.Context, ownerID string) (models.UnitStatus, error)
	setUnitsFn      func(ctx context.Context, ownerID string, units int64) (models.UnitStatus, error)
	sellUnitsFn     func(ctx context.Context, ownerID string, n int64) (models.UnitStatus, error)
	attachStationFn func(ctx context.Context, ownerID string, ports []string) (models.Grid, error)
	listAllFn       func(ctx context.Context) ([]models.Grid, error)
}

func (s stubGridService) Create(ctx context.Context, req services.CreateGridRequest) (string, error) {
	return s.createFn(ctx, req)
}

func (s stubGridService) Fetch(ctx context.Context, ownerID string) (models.Grid, error) {
	return s.fetchFn(ctx, ownerID)
}

func (s stubGridService) UnitStatus(ctx context.Context, ownerID string) (models.UnitStatus, error) {
	return s.unitStatusFn(ctx, ownerID)
}

func (s stubGridService) SetUnits(ctx context.Context, ownerID string, units int64) (models.UnitStatus, error) {
	return s.setUnitsFn(ctx, ownerID, units)
}

func (s stubGridService) SellUnits(ctx context.Context, ownerID string, n int64) (models.UnitStatus, error) {
	return s.sellUnitsFn(ctx, ownerID, n)
}

func (s stubGridService) AttachStation(ctx context.Context, ownerID string, ports []string) (models.Grid, error) {
	return s.attachStationFn(ctx, ownerID, ports)
}

func (s stubGridService) ListAll(ctx context.Context) ([]models.Grid, error) {
	return s.listAllFn(ctx)
}

type stubPoolService struct {
	listFn func(ctx context.Context, userID string) ([]models.SellableGrid, error)
	buyFn  func(ctx context.Context, req services.BuyRequest) (services.Purchase, error)
}

func (s stubPoolService) ListSellable(ctx context.Context, userID string) ([]models.SellableGrid, error) {
	return s.listFn(ctx, userID)
}

func (s stubPoolService) Buy(ctx context.Context, req services.BuyRequest) (services.Purchase, error) {
	return s.buyFn(ctx, req)
}

type stubReportService struct {
	historyFn func(ctx context.Context, userID string) (services.History, error)
	monthlyFn func(ctx context.Context, userID string) ([]services.MonthlyEntry, error)
}

func (s stubReportService) History(ctx context.Context, userID string) (services.History, error) {
	return s.historyFn(ctx, userID)
}

func (s stubReportService) MonthlySummary(ctx context.Context, userID string) ([]services.MonthlyEntry, error) {
	return s.monthlyFn(ctx, userID)
}

var testTokens = auth.NewTokenService("secret", "powershare", time.Minute)

func newTestHandler(accounts stubAccountService, grids stubGridService, pool stubPoolService, reports stubReportService) http.Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		JWTIssuer:      "powershare",
		TokenTTL:       time.Minute,
		AllowedOrigins: []string{"*"},
	}
	return New(cfg, nil, testTokens, accounts, grids, pool, reports, websocket.NewHub()).Routes()
}

func serveAs(t *testing.T, handler http.Handler, userID, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		token, err := testTokens.Generate(userID + "@example.com")
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return serveRequest(handler, req)
}

func serveRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

var errStoreDown = sql.ErrConnDone
