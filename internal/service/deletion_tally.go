package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/void-feed/internal/repository"
	"github.com/d60-Lab/void-feed/pkg/logger"
)

const tallyKey = "deletions:tally"

// DeletionTally aggregates deletion records per deleter. The aggregate lives in a Redis
// sorted set (cache-aside with TTL) and is dropped whenever a new record lands.
type DeletionTally struct {
	deletions repository.DeletionRepository
	cache     *redis.Client
	ttl       time.Duration

	aggregations atomic.Int64
}

func NewDeletionTally(deletions repository.DeletionRepository, cache *redis.Client, ttl time.Duration) *DeletionTally {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DeletionTally{deletions: deletions, cache: cache, ttl: ttl}
}

// Top returns the n most active deleters, highest count first.
func (t *DeletionTally) Top(ctx context.Context, n int) ([]repository.DeleterCount, error) {
	if n <= 0 {
		n = 10
	}
	if exists, err := t.cache.Exists(ctx, tallyKey).Result(); err == nil && exists > 0 {
		zs, err := t.cache.ZRevRangeWithScores(ctx, tallyKey, 0, int64(n-1)).Result()
		if err == nil {
			out := make([]repository.DeleterCount, 0, len(zs))
			for _, z := range zs {
				member, _ := z.Member.(string)
				out = append(out, repository.DeleterCount{UserID: member, Count: int64(z.Score)})
			}
			return out, nil
		}
	}

	rows, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

// CountFor returns how many posts userID has deleted.
func (t *DeletionTally) CountFor(ctx context.Context, userID string) (int64, error) {
	if exists, err := t.cache.Exists(ctx, tallyKey).Result(); err == nil && exists > 0 {
		score, err := t.cache.ZScore(ctx, tallyKey, userID).Result()
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		if err == nil {
			return int64(score), nil
		}
	}
	rows, err := t.load(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if r.UserID == userID {
			return r.Count, nil
		}
	}
	return 0, nil
}

// Invalidate drops the cached aggregate.
func (t *DeletionTally) Invalidate(ctx context.Context) {
	if err := t.cache.Del(ctx, tallyKey).Err(); err != nil {
		logger.Warn("invalidate deletion tally failed", zap.Error(err))
	}
}

// OnDeletionRecorded adapts Invalidate to the gateway hook signature.
func (t *DeletionTally) OnDeletionRecorded(ctx context.Context, _, _ string) { t.Invalidate(ctx) }

// Aggregations reports how many times the database aggregate ran.
func (t *DeletionTally) Aggregations() int64 { return t.aggregations.Load() }

func (t *DeletionTally) load(ctx context.Context) ([]repository.DeleterCount, error) {
	t.aggregations.Add(1)
	rows, err := t.deletions.CountByDeleter(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}
	members := make([]redis.Z, len(rows))
	for i, r := range rows {
		members[i] = redis.Z{Score: float64(r.Count), Member: r.UserID}
	}
	pipe := t.cache.TxPipeline()
	pipe.Del(ctx, tallyKey)
	pipe.ZAdd(ctx, tallyKey, members...)
	pipe.Expire(ctx, tallyKey, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("cache deletion tally failed", zap.Error(err))
	}
	return rows, nil
}
