package cron

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLocker struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memoryLocker) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLocker) ReleaseIfOwner(_ context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[key] != token {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryLocker) LockKey(name string) string { return "lock:" + name }

func TestRedisLockExclusive(t *testing.T) {
	store := &memoryLocker{values: map[string]string{}}
	first, err := NewRedisLock(store, "cron", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "cron", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, store.values, "lock:cron")

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	// a loser's release must not drop the winner's key
	require.NoError(t, second.Release(context.Background()))
	assert.Contains(t, store.values, "lock:cron")

	require.NoError(t, first.Release(context.Background()))
	assert.NotContains(t, store.values, "lock:cron")

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockSharedAcrossGoroutines(t *testing.T) {
	store := &memoryLocker{values: map[string]string{}}
	lock, err := NewRedisLock(store, "cron", time.Minute)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		holders atomic.Int32
		overlap atomic.Bool
		wins    atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ok, err := lock.Acquire(context.Background())
				if err != nil || !ok {
					continue
				}
				wins.Add(1)
				if holders.Add(1) > 1 {
					overlap.Store(true)
				}
				holders.Add(-1)
				if err := lock.Release(context.Background()); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load())
	assert.Positive(t, wins.Load())
	assert.NotContains(t, store.values, "lock:cron")
}

func TestRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "cron", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(&memoryLocker{}, "", time.Minute)
	assert.Error(t, err)

	lock, err := NewRedisLock(&memoryLocker{values: map[string]string{}}, "cron", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)
}
