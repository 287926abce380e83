package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenStore struct {
	values     map[string]string
	releaseErr error
}

func (s *tokenStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, held := s.values[key]; held {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *tokenStore) ReleaseIfOwner(_ context.Context, key, owner string) (bool, error) {
	if s.releaseErr != nil {
		return false, s.releaseErr
	}
	if s.values[key] != owner {
		return false, nil
	}
	delete(s.values, key)
	return true, nil
}

func TestRedisLockIsExclusiveAndOwnerScoped(t *testing.T) {
	store := &tokenStore{values: map[string]string{}}
	ctx := context.Background()
	const key = "cafepos:lock:cron:prod"

	first, err := NewRedisLock(store, key, time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, key, time.Minute)
	require.NoError(t, err)

	won, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	won, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, won)
	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, key, "a worker that never won must not free the key")

	require.NoError(t, first.Release(ctx))
	won, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestExpiredLockIsNotStolenBack(t *testing.T) {
	store := &tokenStore{values: map[string]string{}}
	ctx := context.Background()
	const key = "cafepos:lock:cron:prod"

	slow, _ := NewRedisLock(store, key, time.Minute)
	_, err := slow.Acquire(ctx)
	require.NoError(t, err)

	delete(store.values, key)
	fresh, _ := NewRedisLock(store, key, time.Minute)
	won, err := fresh.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, slow.Release(ctx))
	assert.Contains(t, store.values, key)
}

func TestReleaseReportsStoreFailure(t *testing.T) {
	store := &tokenStore{values: map[string]string{}}
	lock, _ := NewRedisLock(store, "cafepos:lock:cron", 0)
	_, err := lock.Acquire(context.Background())
	require.NoError(t, err)

	store.releaseErr = errors.New("connection reset")
	assert.ErrorContains(t, lock.Release(context.Background()), "connection reset")
	assert.Equal(t, defaultLockTTL, lock.ttl)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(&tokenStore{}, "", 0)
	assert.Error(t, err)
}
