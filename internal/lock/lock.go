package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goCache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	ierr "github.com/rumahku/billing/internal/errors"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const keyCheckout = "checkout:lock:%s"

// CheckoutKey is the lock key serialising checkouts of one family
func CheckoutKey(familyID string) string {
	return fmt.Sprintf(keyCheckout, strings.TrimSpace(familyID))
}

// Locker hands out short lived exclusive leases on a key
type Locker interface {
	// TryLock returns a token when the lease was acquired, ok is false when
	// somebody else holds it
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// NewLocker uses redis when a client is configured and falls back to a
// process local lease table otherwise
func NewLocker(client goredis.UniversalClient) Locker {
	if client == nil {
		return NewLocalLocker()
	}
	return NewRedisLocker(client)
}

type RedisLocker struct {
	client goredis.UniversalClient
	script *goredis.Script
}

func NewRedisLocker(client goredis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: client,
		script: goredis.NewScript(releaseScript),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validate(key, ttl); err != nil {
		return "", false, err
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, ierr.WithError(err).
			WithHint("Could not acquire lock").
			Mark(ierr.ErrUnavailable)
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// LocalLocker keeps leases in a go-cache table, Add fails while a lease is live
type LocalLocker struct {
	leases *goCache.Cache
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{leases: goCache.New(time.Minute, 5*time.Minute)}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validate(key, ttl); err != nil {
		return "", false, err
	}

	token := uuid.NewString()
	if err := l.leases.Add(key, token, ttl); err != nil {
		return "", false, nil
	}
	return token, true, nil
}

func (l *LocalLocker) Release(_ context.Context, key, token string) error {
	if held, ok := l.leases.Get(key); ok && held == token {
		l.leases.Delete(key)
	}
	return nil
}

func validate(key string, ttl time.Duration) error {
	if key == "" {
		return ierr.NewError("lock key is empty").Mark(ierr.ErrValidation)
	}
	if ttl <= 0 {
		return ierr.NewError("lock ttl must be positive").Mark(ierr.ErrValidation)
	}
	return nil
}
