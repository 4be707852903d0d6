package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const keyCaptureLock = "revlens:capture:lock:%s"

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock_not_acquired")

type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes the key only while it still holds token.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// Handle releases an acquired capture lock.
type Handle func(ctx context.Context) error

// CaptureLocker serializes captures per company.
type CaptureLocker interface {
	Acquire(ctx context.Context, companyID string) (Handle, error)
}

type captureLocker struct {
	locker *Locker
	ttl    time.Duration
}

func NewCaptureLocker(locker *Locker, ttl time.Duration) CaptureLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &captureLocker{locker: locker, ttl: ttl}
}

func (c *captureLocker) Acquire(ctx context.Context, companyID string) (Handle, error) {
	key := fmt.Sprintf(keyCaptureLock, strings.TrimSpace(companyID))
	token, ok, err := c.locker.TryLock(ctx, key, c.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire capture lock: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func(ctx context.Context) error {
		return c.locker.Release(ctx, key, token)
	}, nil
}
