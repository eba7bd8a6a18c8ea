package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/pkg/models"
)

const rateLimitKeyPrefix = "stayrec:ratelimit:"

// RateLimiter implements sliding window rate limiting on a Redis sorted set
// per client.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Allow records one request for key and reports whether it fits the window.
// When Redis cannot be reached the request is allowed.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (*models.RateLimitInfo, bool) {
	now := rl.now()
	windowStart := now.Add(-rl.window)
	redisKey := rateLimitKeyPrefix + key

	info := &models.RateLimitInfo{
		Limit:     rl.limit,
		Remaining: rl.limit - 1,
		ResetTime: now.Add(rl.window).Unix(),
	}

	pipe := rl.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
	})
	pipe.Expire(ctx, redisKey, rl.window)

	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.WithError(err).WithField("key", key).Warn("Rate limit check failed, allowing request")
		return info, true
	}

	count := int(countCmd.Val())
	info.Remaining = rl.limit - count - 1
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	return info, count < rl.limit
}
