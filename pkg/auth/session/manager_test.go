package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func newTestManager() (*Manager, *mockStore) {
	store := newMockStore()
	return &Manager{store: store, keyer: store, ttl: time.Hour}, store
}

func TestManagerGenerateAndRotate(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()
	userID := uuid.New()

	token, err := manager.Generate(ctx, "access-123", userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	ok, err := manager.HasSession(ctx, "access-123")
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = manager.Rotate(ctx, "access-123", userID, "wrong")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	newAccessID, newToken, err := manager.Rotate(ctx, "access-123", userID, token)
	require.NoError(t, err)
	require.NotEqual(t, token, newToken)
	require.NotContains(t, store.data, "sess:access-123")
	require.Contains(t, store.data, "sess:"+newAccessID)

	_, _, err = manager.Rotate(ctx, "access-123", userID, token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken, "old refresh token must not be reusable")
}

func TestManagerRotateRejectsOtherUser(t *testing.T) {
	manager, _ := newTestManager()
	ctx := context.Background()

	token, err := manager.Generate(ctx, "access-1", uuid.New())
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, "access-1", uuid.New(), token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestManagerRevoke(t *testing.T) {
	manager, _ := newTestManager()
	ctx := context.Background()

	_, err := manager.Generate(ctx, "access-9", uuid.New())
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(ctx, "access-9"))

	ok, err := manager.HasSession(ctx, "access-9")
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, manager.Revoke(ctx, " "))
}

func TestManagerGenerateValidatesInput(t *testing.T) {
	manager, _ := newTestManager()
	_, err := manager.Generate(context.Background(), "", uuid.New())
	require.Error(t, err)
	_, err = manager.Generate(context.Background(), "access", uuid.Nil)
	require.Error(t, err)
}

func TestManagerStoresOnlyTokenDigest(t *testing.T) {
	manager, store := newTestManager()
	token, err := manager.Generate(context.Background(), "access-d", uuid.New())
	require.NoError(t, err)

	raw := store.data["sess:access-d"]
	require.NotEmpty(t, raw)
	require.NotContains(t, raw, token)
	require.Contains(t, raw, digest(token))
}
