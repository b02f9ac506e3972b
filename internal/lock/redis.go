package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultKey = "catalogsync:cycle"

// Locker hands out a lease for one reconciliation cycle. ok is false when
// another holder owns the lease.
type Locker interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// compare-and-delete so a holder whose lease expired cannot drop a newer one
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker keeps cycles from overlapping across replicas with a SET NX
// lease. The lease is extended every TTL/3 while held, so TTL only bounds how
// long a crashed holder blocks the others.
type RedisLocker struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
	Logger *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{Client: client, Key: DefaultKey, TTL: ttl, Logger: zap.NewNop()}
}

func (l *RedisLocker) Acquire(ctx context.Context) (func(), bool, error) {
	if l.Client == nil {
		return nil, false, errors.New("redis client is nil")
	}
	token := uuid.NewString()
	err := l.Client.SetArgs(ctx, l.Key, token, redis.SetArgs{Mode: "NX", TTL: l.TTL}).Err()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		keepAlive(renewCtx, l.TTL/3, func(ctx context.Context) (bool, error) {
			n, err := extendScript.Run(ctx, l.Client, []string{l.Key}, token, l.TTL.Milliseconds()).Int64()
			return n == 1, err
		}, l.logger())
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			stop()
			<-renewed
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.Client, []string{l.Key}, token).Err()
		})
	}
	return release, true, nil
}

func (l *RedisLocker) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

// keepAlive calls extend every interval until ctx is done or the lease is
// gone. A failed call is retried on the next tick while the lease may still
// be live.
func keepAlive(ctx context.Context, interval time.Duration, extend func(context.Context) (bool, error), logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			callCtx, cancel := context.WithTimeout(ctx, interval)
			held, err := extend(callCtx)
			cancel()
			switch {
			case err != nil:
				logger.Warn("sync lease renewal failed", zap.Error(err))
			case !held:
				logger.Warn("sync lease lost; another instance may start a cycle")
				return
			}
		}
	}
}
