package repository

import (
	"context"
	"time"

	"codebattle/internal/common/cache"
	appErr "codebattle/pkg/errors"
	"codebattle/pkg/utils/logger"

	"go.uber.org/zap"
)

const queueKeyPrefix = "match_queue:"

// QueueRepository is the ordered waiting list, one ZSET per game type.
// Member = userId, score = enqueue time in milliseconds. All operations are
// atomic at the store, so several Matcher instances may race on the same
// queue without losing or duplicating tickets.
type QueueRepository struct {
	cache cache.Cache
}

// NewQueueRepository creates a queue repository backed by the given cache.
func NewQueueRepository(c cache.Cache) *QueueRepository {
	return &QueueRepository{cache: c}
}

func queueKey(gameType string) string {
	return queueKeyPrefix + gameType
}

// Enqueue inserts the user with the current time as score. Idempotent: a user
// already waiting for this game type keeps the original position.
func (r *QueueRepository) Enqueue(ctx context.Context, gameType, userID string) error {
	added, err := r.cache.ZAddNX(ctx, queueKey(gameType), cache.ZMember{
		Score:  float64(time.Now().UnixMilli()),
		Member: userID,
	})
	if err != nil {
		return appErr.Wrap(err, appErr.QueueEnqueueFailed)
	}
	if added {
		logger.Info(ctx, "user joined queue",
			zap.String("gameType", gameType), zap.String("userId", userID))
	} else {
		logger.Info(ctx, "user already in queue",
			zap.String("gameType", gameType), zap.String("userId", userID))
	}
	return nil
}

// Cancel removes the user's ticket. No-op when absent.
func (r *QueueRepository) Cancel(ctx context.Context, gameType, userID string) error {
	if err := r.cache.ZRem(ctx, queueKey(gameType), userID); err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	return nil
}

// Size returns the number of distinct users currently waiting.
func (r *QueueRepository) Size(ctx context.Context, gameType string) (int64, error) {
	size, err := r.cache.ZCard(ctx, queueKey(gameType))
	if err != nil {
		return 0, appErr.Wrap(err, appErr.CacheError)
	}
	return size, nil
}

// PopOldest atomically removes and returns the longest-waiting entry.
// ok=false when the queue is empty.
func (r *QueueRepository) PopOldest(ctx context.Context, gameType string) (entry cache.ZMember, ok bool, err error) {
	entry, ok, err = r.cache.ZPopMin(ctx, queueKey(gameType))
	if err != nil {
		return cache.ZMember{}, false, appErr.Wrap(err, appErr.CacheError)
	}
	return entry, ok, nil
}

// Requeue reinserts a user at an explicit score, restoring the original queue
// position after a failed pairing.
func (r *QueueRepository) Requeue(ctx context.Context, gameType, userID string, score float64) error {
	err := r.cache.ZAdd(ctx, queueKey(gameType), cache.ZMember{Score: score, Member: userID})
	if err != nil {
		return appErr.Wrap(err, appErr.QueueRequeueFailed)
	}
	logger.Info(ctx, "user returned to queue",
		zap.String("gameType", gameType), zap.String("userId", userID), zap.Float64("score", score))
	return nil
}
