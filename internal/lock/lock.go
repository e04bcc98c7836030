// Package lock provides short-lived mutual exclusion keyed by name. The redis
// implementation coordinates several instances; the local one covers a single
// process when no redis address is configured.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by someone else is left alone.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

type RedisLocker struct {
	client   redis.Cmdable
	logger   *slog.Logger
	newToken func() string
}

func NewRedisLocker(client redis.Cmdable, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		client:   client,
		logger:   logger,
		newToken: uuid.NewString,
	}
}

// WithTokenSource replaces the generator of lock ownership tokens.
func (l *RedisLocker) WithTokenSource(f func() string) *RedisLocker {
	l.newToken = f
	return l
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	redisKey := keyPrefix + key
	token := l.newToken()

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := l.client.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
			l.logger.Warn("failed to release lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}

type localEntry struct {
	token   uint64
	expires time.Time
}

type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	seq   uint64
	clock func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]localEntry),
		clock: time.Now,
	}
}

func (l *LocalLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, false, nil
	}

	l.seq++
	token := l.seq
	l.held[key] = localEntry{token: token, expires: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[key]; ok && e.token == token {
			delete(l.held, key)
		}
	}
	return release, true, nil
}
