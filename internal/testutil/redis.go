// README: Redis helper for cache-backed tests; skipped unless TRUCKMATCH_TEST_REDIS_ADDR is set.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

const RedisAddrEnv = "TRUCKMATCH_TEST_REDIS_ADDR"

// OpenRedis connects and flushes the selected database.
func OpenRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv(RedisAddrEnv)
	if addr == "" {
		t.Skip(RedisAddrEnv + " not set; skipping Redis-backed tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	if err := rdb.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return rdb
}
