package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tablestars-backend/api/controllers"
	"github.com/angelmondragon/tablestars-backend/internal/balances"
	"github.com/angelmondragon/tablestars-backend/internal/subscriptions"
	pkgAuth "github.com/angelmondragon/tablestars-backend/pkg/auth"
	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
	"github.com/angelmondragon/tablestars-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubBalances struct {
	balances.Service
}

func (stubBalances) List(context.Context, uuid.UUID) ([]balances.BalanceDTO, error) {
	return []balances.BalanceDTO{}, nil
}

type stubSubscriptions struct {
	subscriptions.Service
}

func (stubSubscriptions) ListActivePlans(context.Context) ([]subscriptions.PlanDTO, error) {
	return []subscriptions.PlanDTO{}, nil
}

func (stubSubscriptions) ListPlans(context.Context) ([]subscriptions.PlanDTO, error) {
	return []subscriptions.PlanDTO{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: "secret", Issuer: "tablestars", ExpirationMinutes: 30},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Config:        cfg,
		Logger:        logger.Nop(),
		Pingers:       map[string]controllers.Pinger{"db": stubPinger{}},
		Sessions:      stubSessions{},
		Gatherer:      reg,
		HTTP:          metrics.NewHTTPMetrics(reg),
		Balances:      stubBalances{},
		Subscriptions: stubSubscriptions{},
	}), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role, restaurantID *uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:       uuid.New(),
		Role:         role,
		RestaurantID: restaurantID,
		JTI:          uuid.NewString(),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func do(router http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/ready", "").Code)

	rec := do(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestPublicPlans(t *testing.T) {
	router, _ := newTestRouter(t)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/plans", "").Code)
}

func TestClientRoutesRequireSession(t *testing.T) {
	router, cfg := newTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/api/client/balance", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/client/balance", bearer(t, cfg, enums.RoleUser, nil)).Code)
}

func TestCapabilitiesGateRoutes(t *testing.T) {
	router, cfg := newTestRouter(t)
	restaurantID := uuid.New()
	owner := bearer(t, cfg, enums.RoleRestaurantOwner, &restaurantID)
	user := bearer(t, cfg, enums.RoleUser, nil)
	subAdmin := bearer(t, cfg, enums.RoleSubAdmin, nil)

	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/client/balance", owner).Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/restaurant/subscriptions", user).Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/admin/plans", user).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/admin/plans", subAdmin).Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodPost, "/api/admin/plans", subAdmin).Code)
}

func TestRestaurantRoutesNeedActiveRestaurant(t *testing.T) {
	router, cfg := newTestRouter(t)
	owner := bearer(t, cfg, enums.RoleRestaurantOwner, nil)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/restaurant/me", owner).Code)
}

func TestUnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/nope", "").Code)
}
