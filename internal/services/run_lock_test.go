package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRunLock_LocalOnly(t *testing.T) {
	lock := NewRunLock(nil, "lock", time.Minute, testLogger())

	release, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, lock.Running())

	_, err = lock.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrRecomputeInProgress)

	release()
	assert.False(t, lock.Running())

	release, err = lock.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestRunLock_RedisLease(t *testing.T) {
	mr, client := newTestRedis(t)
	lock := NewRunLock(client, "stayrec:recompute:lock", time.Minute, testLogger())

	release, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, mr.Exists("stayrec:recompute:lock"))
	assert.Equal(t, time.Minute, mr.TTL("stayrec:recompute:lock"))

	release()
	assert.False(t, mr.Exists("stayrec:recompute:lock"))
	assert.False(t, lock.Running())
}

func TestRunLock_LeaseHeldByAnotherReplica(t *testing.T) {
	mr, client := newTestRedis(t)
	require.NoError(t, mr.Set("stayrec:recompute:lock", "other-replica"))

	lock := NewRunLock(client, "stayrec:recompute:lock", time.Minute, testLogger())

	_, err := lock.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrRecomputeInProgress)
	assert.False(t, lock.Running())
}

func TestRunLock_ReleaseKeepsForeignLease(t *testing.T) {
	mr, client := newTestRedis(t)
	lock := NewRunLock(client, "stayrec:recompute:lock", time.Minute, testLogger())

	release, err := lock.Acquire(context.Background())
	require.NoError(t, err)

	// Lease expired and was taken over by another replica.
	require.NoError(t, mr.Set("stayrec:recompute:lock", "other-replica"))
	release()

	value, err := mr.Get("stayrec:recompute:lock")
	require.NoError(t, err)
	assert.Equal(t, "other-replica", value)
}

func TestRunLock_RedisDownFallsBackToLocal(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	lock := NewRunLock(client, "stayrec:recompute:lock", time.Minute, testLogger())

	release, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, lock.Running())

	_, err = lock.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrRecomputeInProgress)

	release()
	assert.False(t, lock.Running())
}
