package access

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	quotaKeyPrefix = "quota:subject:" // Sorted set of request timestamps: quota:subject:{subject_id}
	quotaWindow    = 24 * time.Hour
)

// Quota counts requests per subject over a rolling window.
type Quota interface {
	// Consume records one request unless the subject already reached limit.
	// It returns the usage including this request when allowed.
	Consume(ctx context.Context, subjectID string, limit int64, now time.Time) (usage int64, allowed bool, err error)
}

// RedisQuota keeps a sliding window per subject in a sorted set scored by
// unix milliseconds. Concurrent callers can over-admit by a few requests.
type RedisQuota struct {
	client *redis.Client
	window time.Duration
}

func NewRedisQuota(client *redis.Client) *RedisQuota {
	return &RedisQuota{client: client, window: quotaWindow}
}

func (q *RedisQuota) Consume(ctx context.Context, subjectID string, limit int64, now time.Time) (int64, bool, error) {
	key := quotaKeyPrefix + subjectID
	cutoff := now.Add(-q.window).UnixMilli()

	pipe := q.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, fmt.Errorf("failed to read quota window: %w", err)
	}

	usage := card.Val()
	if usage >= limit {
		return usage, false, nil
	}

	pipe = q.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, q.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return usage, false, fmt.Errorf("failed to record quota usage: %w", err)
	}
	return usage + 1, true, nil
}
