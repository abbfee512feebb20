package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"legal-backend/internal/shared/telemetry"
)

const (
	defaultRedisLockTTL   = 30 * time.Second
	defaultRedisLockRetry = 200 * time.Millisecond
	redisLockPrefix       = "legal:analysis-lock:"
)

// Deletes or extends the key only while it still holds our token.
var (
	redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)
	redisExtendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker is a Locker shared by every API and worker process pointed at
// the same Redis. Held keys are refreshed until unlock so long runs keep
// their lease.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker builds a locker on client. Non-positive ttl means 30s.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultRedisLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, retry: defaultRedisLockRetry}
}

// NewRedisClient parses redisURL and checks connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	telemetry.Info("redis.connected", map[string]any{"addr": opts.Addr})
	return client, nil
}

func (l *RedisLocker) Lock(ctx context.Context, ids ...string) (func(), error) {
	token := uuid.NewString()
	keys := lockOrder(ids)
	held := make([]string, 0, len(keys))
	for _, id := range keys {
		key := redisLockPrefix + id
		if err := l.acquire(ctx, key, token); err != nil {
			l.releaseAll(held, token)
			return nil, err
		}
		held = append(held, key)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.refresh(held, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.releaseAll(held, token)
		})
	}, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *RedisLocker) refresh(keys []string, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			for _, key := range keys {
				if err := redisExtendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Err(); err != nil {
					telemetry.Warn("pipeline.lock.refresh_failed", map[string]any{"key": key, "error": err})
				}
			}
			cancel()
		}
	}
}

// releaseAll uses its own context so an expired run context cannot leak locks.
func (l *RedisLocker) releaseAll(keys []string, token string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if err := redisUnlockScript.Run(ctx, l.client, []string{keys[i]}, token).Err(); err != nil {
			telemetry.Warn("pipeline.lock.release_failed", map[string]any{"key": keys[i], "error": err})
		}
	}
}

var _ Locker = (*RedisLocker)(nil)
