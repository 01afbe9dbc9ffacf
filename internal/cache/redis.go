package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBacking is an optional shared backing store for provider results,
// letting multiple assay proxy processes behind the same Redis instance
// avoid re-fetching verification/protocol/token-security data the first
// process already paid for. It is consulted as a second-tier read and
// write-through on the in-process Memo/TTL caches above; nothing in the
// core depends on it being configured, and without it the caches stay
// in-process only.
type RedisBacking struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisBacking connects to addr and verifies connectivity with a short
// ping, mirroring the teacher's GoRedisAdapter constructor. Returns an
// error the caller is expected to log and then proceed without a backing
// store, never a panic.
func NewRedisBacking(addr, password string, db int, keyPrefix string) (*RedisBacking, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	slog.Info("assay cache: redis backing connected", "addr", addr, "db", db)
	return &RedisBacking{rdb: rdb, prefix: keyPrefix}, nil
}

func (b *RedisBacking) Close() error { return b.rdb.Close() }

func (b *RedisBacking) key(parts ...string) string {
	k := b.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// GetJSON fetches and unmarshals a value; ok is false on miss or decode
// failure (a decode failure is treated as a miss, matching the phish-list
// disk cache's "torn file is cold" rule).
func GetJSON[V any](ctx context.Context, b *RedisBacking, key string) (V, bool) {
	var zero V
	if b == nil {
		return zero, false
	}
	raw, err := b.rdb.Get(ctx, b.key(key)).Bytes()
	if err != nil {
		return zero, false
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	return v, true
}

// SetJSON marshals and stores a value with a TTL. Failures are logged, not
// returned as fatal — the backing store is strictly an optimization.
func SetJSON[V any](ctx context.Context, b *RedisBacking, key string, v V, ttl time.Duration) {
	if b == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := b.rdb.Set(ctx, b.key(key), data, ttl).Err(); err != nil {
		slog.Warn("assay cache: redis write failed", "key", key, "error", err)
	}
}
