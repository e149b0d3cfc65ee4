// Package lock keeps two passes from mutating the contact store at once,
// even when the server and the worker run side by side.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Locker hands out named leases. TryAcquire returns a release func when the
// lease was taken and ok=false when another holder has it.
type Locker interface {
	TryAcquire(ctx context.Context, name string) (release func(), ok bool, err error)
}

// RedisLocker leases keys with SET NX and a TTL so a crashed holder cannot
// block passes forever. A held lease is extended every ttl/3 until released,
// so a pass may run longer than the TTL.
type RedisLocker struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client goredis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisLockerFromURL parses a redis:// URL and pings the server.
func NewRedisLockerFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisLocker(client, "outreach", ttl), nil
}

var releaseLeaseScript = goredis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
  return redis.call('del', KEYS[1])
else
  return 0
end
`)

var extendLeaseScript = goredis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
  return redis.call('pexpire', KEYS[1], ARGV[2])
else
  return 0
end
`)

func (l *RedisLocker) key(name string) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, name)
}

func (l *RedisLocker) TryAcquire(ctx context.Context, name string) (func(), bool, error) {
	key := l.key(name)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	keepAliveCtx, stopKeepAlive := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.keepAlive(keepAliveCtx, key, token)
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			stopKeepAlive()
			<-stopped
			// the caller's ctx may already be cancelled by the time we release
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			releaseLeaseScript.Run(releaseCtx, l.client, []string{key}, token) //nolint:errcheck
		})
	}
	return release, true, nil
}

// keepAlive pushes the lease expiry out while ctx is live. It stops once the
// lease belongs to someone else.
func (l *RedisLocker) keepAlive(ctx context.Context, key, token string) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := extendLeaseScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if errors.Is(err, goredis.ErrClosed) {
				return
			}
			if err != nil {
				// the next tick tries again before the lease runs out
				continue
			}
			if n == 0 {
				return
			}
		}
	}
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// MemoryLocker serializes passes inside one process. It is the fallback when
// no Redis is configured.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]bool{}}
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, name string) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, false, nil
	}
	l.held[name] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
	}
	return release, true, nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*MemoryLocker)(nil)
)
