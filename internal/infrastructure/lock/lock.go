// Package lock provides named mutual-exclusion leases for background jobs.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lease
var ErrLockHeld = errors.New("lock is held by another owner")

// Lease is a held lock; Release is safe to call more than once
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires named leases with a TTL
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

const keyPrefix = "lock:"

// releaseScript deletes the key only when the token still matches
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a RedisLocker
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the lease or returns ErrLockHeld
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+name, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, name)
	}
	return &redisLease{client: l.client, key: keyPrefix + name, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (r *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key}, r.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// MemoryLocker implements Locker inside one process
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryHold
	clock func() time.Time
}

type memoryHold struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLocker creates a MemoryLocker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryHold), clock: time.Now}
}

// Acquire takes the lease unless an unexpired one exists
func (l *MemoryLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if h, ok := l.held[name]; ok && now.Before(h.expiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, name)
	}
	token := uuid.NewString()
	l.held[name] = memoryHold{token: token, expiresAt: now.Add(ttl)}
	return &memoryLease{locker: l, name: name, token: token}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	name   string
	token  string
}

func (m *memoryLease) Release(ctx context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if h, ok := m.locker.held[m.name]; ok && h.token == m.token {
		delete(m.locker.held, m.name)
	}
	return nil
}
