package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrRecomputeInProgress is returned when a run is requested while another
// one holds the lock, in this process or in another replica.
var ErrRecomputeInProgress = errors.New("recompute already in progress")

var releaseLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RunLock allows a single recompute at a time. The local flag covers the
// process; the Redis lease covers every replica sharing the same Redis. The
// lease expires after ttl so a crashed holder cannot block runs forever.
type RunLock struct {
	running atomic.Bool
	redis   *redis.Client
	key     string
	ttl     time.Duration
	logger  *logrus.Logger
}

func NewRunLock(client *redis.Client, key string, ttl time.Duration, logger *logrus.Logger) *RunLock {
	return &RunLock{
		redis:  client,
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire takes the lock or returns ErrRecomputeInProgress. The returned
// release func must be called exactly once.
func (l *RunLock) Acquire(ctx context.Context) (func(), error) {
	if !l.running.CompareAndSwap(false, true) {
		return nil, ErrRecomputeInProgress
	}

	if l.redis == nil {
		return l.releaseLocal, nil
	}

	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		// Postgres is the source of truth; a Redis outage degrades the lock
		// to this process only.
		l.logger.WithError(err).WithField("key", l.key).Warn("Recompute lease unavailable, continuing with local lock")
		return l.releaseLocal, nil
	}
	if !ok {
		l.running.Store(false)
		return nil, ErrRecomputeInProgress
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := releaseLeaseScript.Run(ctx, l.redis, []string{l.key}, token).Err(); err != nil {
			l.logger.WithError(err).WithField("key", l.key).Warn("Failed to release recompute lease")
		}
		l.releaseLocal()
	}, nil
}

// Running reports whether this process currently holds the lock.
func (l *RunLock) Running() bool {
	return l.running.Load()
}

func (l *RunLock) releaseLocal() {
	l.running.Store(false)
}
