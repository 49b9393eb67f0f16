package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// QuizCache holds fully loaded quizzes, correct answers included. Callers
// strip what the viewer may not see.
type QuizCache interface {
	Get(ctx context.Context, quizID uint) (*QuizDetail, bool)
	Set(ctx context.Context, quiz *QuizDetail)
	Invalidate(ctx context.Context, quizID uint)
}

// RedisQuizCache never fails a request: Redis errors are logged and treated
// as a miss.
type RedisQuizCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisQuizCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisQuizCache {
	return &RedisQuizCache{client: client, ttl: ttl, log: log.Named("quiz_cache")}
}

func quizCacheKey(quizID uint) string {
	return fmt.Sprintf("quiz:%d", quizID)
}

func (c *RedisQuizCache) Get(ctx context.Context, quizID uint) (*QuizDetail, bool) {
	raw, err := c.client.Get(ctx, quizCacheKey(quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("cache get failed", zap.Uint("quiz_id", quizID), zap.Error(err))
		return nil, false
	}

	var quiz QuizDetail
	if err := json.Unmarshal(raw, &quiz); err != nil {
		c.log.Warn("cache entry corrupt", zap.Uint("quiz_id", quizID), zap.Error(err))
		c.Invalidate(ctx, quizID)
		return nil, false
	}
	return &quiz, true
}

func (c *RedisQuizCache) Set(ctx context.Context, quiz *QuizDetail) {
	raw, err := json.Marshal(quiz)
	if err != nil {
		c.log.Warn("cache encode failed", zap.Uint("quiz_id", quiz.ID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, quizCacheKey(quiz.ID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.Uint("quiz_id", quiz.ID), zap.Error(err))
	}
}

func (c *RedisQuizCache) Invalidate(ctx context.Context, quizID uint) {
	if err := c.client.Del(ctx, quizCacheKey(quizID)).Err(); err != nil {
		c.log.Warn("cache invalidate failed", zap.Uint("quiz_id", quizID), zap.Error(err))
	}
}

// NoopQuizCache is used when Redis is disabled.
type NoopQuizCache struct{}

func (NoopQuizCache) Get(context.Context, uint) (*QuizDetail, bool) { return nil, false }
func (NoopQuizCache) Set(context.Context, *QuizDetail)              {}
func (NoopQuizCache) Invalidate(context.Context, uint)              {}
