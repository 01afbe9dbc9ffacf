// Package cache implements the promise-memoized and TTL caching patterns
// used by the provider adapters (§4.2, §9 Design Notes): concurrent
// lookups of the same key share one in-flight call, and a failed call
// evicts its own entry so the next caller retries instead of being
// poisoned by a transient failure.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Memo is a promise-memoized cache keyed by string. A successful Get
// caches its value forever (callers needing expiry should wrap with TTL
// semantics, see TTL). A failed call never populates the cache.
type Memo[V any] struct {
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]V

	redis       *RedisBacking
	redisPrefix string
	redisTTL    time.Duration
}

func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{cache: make(map[string]V)}
}

// UseRedis turns on the second-tier backing store: a local miss checks
// redis (keyed under prefix) before calling fn, and a freshly computed
// value is written through to redis with ttl. Passing a nil backing
// store disables it again, so callers can wire redis conditionally on
// whether it's configured without a separate code path.
func (m *Memo[V]) UseRedis(b *RedisBacking, prefix string, ttl time.Duration) {
	m.redis = b
	m.redisPrefix = prefix
	m.redisTTL = ttl
}

// Get returns the cached value for key, calling fn at most once across all
// concurrent callers that race on the same key. If fn returns an error,
// nothing is cached and the next Get call retries from scratch.
func (m *Memo[V]) Get(key string, fn func() (V, error)) (V, error) {
	m.mu.RLock()
	if v, ok := m.cache[key]; ok {
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()

	v, err, _ := m.group.Do(key, func() (any, error) {
		// Re-check under the singleflight key in case another goroutine's
		// call completed between our RLock release and Do entry.
		m.mu.RLock()
		if cached, ok := m.cache[key]; ok {
			m.mu.RUnlock()
			return cached, nil
		}
		m.mu.RUnlock()

		if m.redis != nil {
			if cached, ok := GetJSON[V](context.Background(), m.redis, m.redisPrefix+key); ok {
				m.mu.Lock()
				m.cache[key] = cached
				m.mu.Unlock()
				return cached, nil
			}
		}

		val, err := fn()
		if err != nil {
			return val, err
		}
		m.mu.Lock()
		m.cache[key] = val
		m.mu.Unlock()
		if m.redis != nil {
			SetJSON(context.Background(), m.redis, m.redisPrefix+key, val, m.redisTTL)
		}
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Evict removes key, forcing the next Get to recompute it.
func (m *Memo[V]) Evict(key string) {
	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()
}

// entry pairs a cached value with its insertion time for TTL eviction.
type entry[V any] struct {
	value V
	at    time.Time
}

// TTL is a promise-memoized cache whose entries expire after a fixed
// duration, used for the protocol-list cache (1h) and similar read-mostly,
// last-writer-wins shared state.
type TTL[V any] struct {
	ttl   time.Duration
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]entry[V]
	now   func() time.Time

	redis       *RedisBacking
	redisPrefix string
}

func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{ttl: ttl, cache: make(map[string]entry[V]), now: time.Now}
}

// UseRedis mirrors Memo.UseRedis: a local miss checks redis before
// calling fn, and the redis copy is written through with the same ttl
// this cache already enforces locally.
func (t *TTL[V]) UseRedis(b *RedisBacking, prefix string) {
	t.redis = b
	t.redisPrefix = prefix
}

func (t *TTL[V]) Get(key string, fn func() (V, error)) (V, error) {
	if v, ok := t.fresh(key); ok {
		return v, nil
	}

	v, err, _ := t.group.Do(key, func() (any, error) {
		if cached, ok := t.fresh(key); ok {
			return cached, nil
		}
		if t.redis != nil {
			if cached, ok := GetJSON[V](context.Background(), t.redis, t.redisPrefix+key); ok {
				t.mu.Lock()
				t.cache[key] = entry[V]{value: cached, at: t.now()}
				t.mu.Unlock()
				return cached, nil
			}
		}
		val, err := fn()
		if err != nil {
			return val, err
		}
		t.mu.Lock()
		t.cache[key] = entry[V]{value: val, at: t.now()}
		t.mu.Unlock()
		if t.redis != nil {
			SetJSON(context.Background(), t.redis, t.redisPrefix+key, val, t.ttl)
		}
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (t *TTL[V]) fresh(key string) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.cache[key]
	if !ok || t.now().Sub(e.at) > t.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}
