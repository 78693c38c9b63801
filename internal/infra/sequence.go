// README: Human-readable daily numbers such as TRIP-20260314-0042 and ORD-20260314-0007.
package infra

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sequencer hands out numbers unique per prefix and day.
type Sequencer interface {
	Next(ctx context.Context, prefix string, at time.Time) (string, error)
}

func formatNumber(prefix string, at time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, at.UTC().Format("20060102"), n)
}

// RedisSequence increments one counter per prefix and day.
type RedisSequence struct {
	rdb *redis.Client
}

func NewRedisSequence(rdb *redis.Client) *RedisSequence {
	return &RedisSequence{rdb: rdb}
}

func (s *RedisSequence) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	key := fmt.Sprintf("seq:%s:%s", prefix, at.UTC().Format("20060102"))
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("next %s number: %w", prefix, err)
	}
	return formatNumber(prefix, at, incr.Val()), nil
}

// RandomSequence draws a random 4 digit suffix. Collisions surface as unique violations.
type RandomSequence struct{}

func (RandomSequence) Next(_ context.Context, prefix string, at time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return formatNumber(prefix, at, n.Int64()), nil
}

// NewSequencer prefers Redis and falls back to random suffixes without it.
func NewSequencer(rdb *redis.Client) Sequencer {
	if rdb == nil {
		return RandomSequence{}
	}
	return NewRedisSequence(rdb)
}
