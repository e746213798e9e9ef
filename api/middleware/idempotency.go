package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tablestars-backend/api/responses"
	"github.com/angelmondragon/tablestars-backend/api/validators"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tablestars-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	defaultIdempotencyTTL = 24 * time.Hour
	ledgerIdempotencyTTL  = 7 * 24 * time.Hour
	inFlightTTL           = time.Minute
	inFlightMarker        = "pending"
	maxIdempotencyKeyLen  = 200
)

// idempotentRoute is one POST surface whose retries are deduplicated. A route
// with a suffix matches any path under prefix ending in suffix.
type idempotentRoute struct {
	prefix string
	suffix string
	ttl    time.Duration
}

func (rt idempotentRoute) matches(path string) bool {
	if rt.suffix == "" {
		return path == rt.prefix
	}
	return strings.HasPrefix(path, rt.prefix) && strings.HasSuffix(path, rt.suffix)
}

// Paths, not chi patterns: the middleware sits on the parent router and runs
// before the sub-router resolves the pattern.
var idempotentRoutes = []idempotentRoute{
	{prefix: "/api/client/balance/scan-qr", ttl: ledgerIdempotencyTTL},
	{prefix: "/api/client/balance/pay", ttl: ledgerIdempotencyTTL},
	{prefix: "/api/client/balance/gift", ttl: ledgerIdempotencyTTL},
	{prefix: "/api/restaurant/balance/topup", ttl: ledgerIdempotencyTTL},
	{prefix: "/api/restaurant/subscriptions/checkout", ttl: defaultIdempotencyTTL},
	{prefix: "/api/admin/subscriptions", ttl: defaultIdempotencyTTL},
	{prefix: "/api/", suffix: "/cancel", ttl: defaultIdempotencyTTL},
}

func routeTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost || path == "" {
		return 0, false
	}
	for _, rt := range idempotentRoutes {
		if rt.matches(path) {
			return rt.ttl, true
		}
	}
	return 0, false
}

// storedResponse is what a replay writes back. Body marshals as base64.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

// Idempotency makes retried ledger and subscription mutations safe. The first
// request carrying an Idempotency-Key claims it, runs, and stores its response;
// later requests with the same key and body get that response replayed. A
// different body under the same key, or a retry while the first is still
// running, is a 409. 5xx responses release the key instead of being stored.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ttl, ok := routeTTL(r.Method, strings.TrimSuffix(r.URL.Path, "/"))
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if !ok || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, validators.MaxBodyBytes+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := hashValue(string(body))
			key := store.IdempotencyKey(buildScope(r), clientKey)

			claimed, err := store.SetNX(ctx, key, inFlightMarker, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if !claimed {
				replayStored(ctx, w, store, key, fingerprint, logg)
				return
			}

			rec := &bodyRecorder{statusRecorder: statusRecorder{ResponseWriter: w}}
			next.ServeHTTP(rec, r)
			persistResponse(ctx, store, key, ttl, fingerprint, rec, logg)
		})
	}
}

func persistResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string, ttl time.Duration, fingerprint string, rec *bodyRecorder, logg *logger.Logger) {
	status := rec.code()
	if status >= http.StatusInternalServerError {
		logIdempotencyError(ctx, logg, "release idempotency key", store.Del(ctx, key))
		return
	}
	payload, err := json.Marshal(storedResponse{
		Status:      status,
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.body.Bytes(),
		Fingerprint: fingerprint,
	})
	if err != nil {
		logIdempotencyError(ctx, logg, "marshal idempotency record", err)
		return
	}
	logIdempotencyError(ctx, logg, "persist idempotency record", store.Set(ctx, key, string(payload), ttl))
}

func replayStored(ctx context.Context, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil), err == nil && raw == inFlightMarker:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this Idempotency-Key is still in progress"))
		return
	case err != nil:
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if stored.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}

	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

// buildScope keeps keys private to the caller and the endpoint.
func buildScope(r *http.Request) string {
	id, _ := IdentityFromContext(r.Context())
	scope := id.UserID.String() + "|" + r.Method + "|" + r.URL.Path
	if id.RestaurantID != nil {
		scope += "|" + id.RestaurantID.String()
	}
	return scope
}

type bodyRecorder struct {
	statusRecorder
	body bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.statusRecorder.Write(b)
}

func logIdempotencyError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil && err != nil {
		logg.Error(ctx, msg, err)
	}
}
