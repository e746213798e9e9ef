package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) only(t *testing.T) (string, time.Duration) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.data, 1)
	for k := range f.data {
		return f.data[k], f.ttls[k]
	}
	return "", 0
}

const payPattern = "/api/client/balance/pay"

func payRequest(body, key string) *http.Request {
	req := requestWithPattern(http.MethodPost, payPattern, payPattern, strings.NewReader(body))
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Role: enums.RoleUser}))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"scan", http.MethodPost, "/api/client/balance/scan-qr", ledgerIdempotencyTTL, true},
		{"pay", http.MethodPost, payPattern, ledgerIdempotencyTTL, true},
		{"gift", http.MethodPost, "/api/client/balance/gift", ledgerIdempotencyTTL, true},
		{"topup", http.MethodPost, "/api/restaurant/balance/topup", ledgerIdempotencyTTL, true},
		{"checkout", http.MethodPost, "/api/restaurant/subscriptions/checkout", defaultIdempotencyTTL, true},
		{"admin grant", http.MethodPost, "/api/admin/subscriptions", defaultIdempotencyTTL, true},
		{"cancel", http.MethodPost, "/api/restaurant/subscriptions/{id}/cancel", defaultIdempotencyTTL, true},
		{"get balance", http.MethodGet, "/api/client/balance", 0, false},
		{"login", http.MethodPost, "/api/auth/login", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := routeTTL(tt.method, tt.pattern)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, ttl)
		})
	}
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, payRequest(`{"amount":"1"}`, ""))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, payRequest(`{"amount":"1"}`, "abc"))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))

	_, ttl := store.only(t)
	assert.Equal(t, ledgerIdempotencyTTL, ttl)

	replayed := httptest.NewRecorder()
	handler.ServeHTTP(replayed, payRequest(`{"amount":"1"}`, "abc"))
	assert.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, "application/json", replayed.Header().Get("Content-Type"))
	assert.Equal(t, "true", replayed.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"ok":true}`, replayed.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), payRequest(`{"amount":"1"}`, "xyz"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payRequest(`{"amount":"2"}`, "xyz"))
	require.Equal(t, http.StatusConflict, rec.Code)

	var payload struct {
		Data struct {
			Code string `json:"code"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Data.Code)
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the key is claimed")
	}))

	req := payRequest(`{}`, "busy")
	key := store.IdempotencyKey(buildScope(req), "busy")
	_, err := store.SetNX(context.Background(), key, inFlightMarker, inFlightTTL)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIdempotencyDoesNotCacheServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payRequest(`{}`, "retry"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, store.data)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, payRequest(`{}`, "retry"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyScopesKeysPerUser(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), payRequest(`{}`, "shared"))

	other := requestWithPattern(http.MethodPost, payPattern, payPattern, strings.NewReader(`{}`))
	other = other.WithContext(WithIdentity(other.Context(), Identity{UserID: uuid.New(), Role: enums.RoleUser}))
	other.Header.Set("Idempotency-Key", "shared")
	handler.ServeHTTP(httptest.NewRecorder(), other)

	assert.Equal(t, 2, calls)
}

func TestIdempotencyRejectsLongKey(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payRequest(`{}`, strings.Repeat("k", 201)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
