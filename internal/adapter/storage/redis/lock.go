package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only if the caller still holds it, so a
// holder that outlived its TTL cannot release a successor's lock.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Mutex implements ports.DistributedLock using SET NX PX. The TTL bounds the
// critical section; a crashed holder is evicted when it expires.
type Mutex struct {
	client *goredis.Client
	prefix string
}

// NewMutex creates a Redis-backed distributed lock.
func NewMutex(client *goredis.Client) *Mutex {
	return &Mutex{
		client: client,
		prefix: "lock:",
	}
}

// TryAcquire attempts to take the lock without blocking. release is non-nil
// iff acquired; releasing after expiry is a harmless no-op.
func (m *Mutex) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	redisKey := m.prefix + key
	token := uuid.New().String()

	ok, err := m.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) {
		unlockScript.Run(ctx, m.client, []string{redisKey}, token)
	}
	return release, true, nil
}
