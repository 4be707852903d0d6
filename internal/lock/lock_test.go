package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client), mr
}

func TestTryLockIsExclusive(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "k", token))
	_, ok, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.Release(ctx, "k", "someone-else"))
	value, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, token, value)
}

func TestTryLockValidation(t *testing.T) {
	locker, _ := newTestLocker(t)
	_, _, err := locker.TryLock(context.Background(), "", time.Minute)
	assert.Error(t, err)
	_, _, err = locker.TryLock(context.Background(), "k", 0)
	assert.Error(t, err)

	var nilLocker *Locker
	_, _, err = nilLocker.TryLock(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestCaptureLockerExpiresAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t)
	capture := NewCaptureLocker(locker, time.Minute)
	ctx := context.Background()

	release, err := capture.Acquire(ctx, "123")
	require.NoError(t, err)

	_, err = capture.Acquire(ctx, "123")
	assert.True(t, errors.Is(err, ErrNotAcquired))

	_, err = capture.Acquire(ctx, "456")
	require.NoError(t, err)

	require.NoError(t, release(ctx))
	_, err = capture.Acquire(ctx, "123")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = capture.Acquire(ctx, "456")
	require.NoError(t, err)
}
