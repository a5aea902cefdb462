package redisstore

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "personachat:lock:conversation:"

// release only deletes the key while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes turns of one conversation across server and worker
// processes. A holder that dies loses the lock after TTL.
type Locker struct {
	rdb      *redis.Client
	TTL      time.Duration
	MinRetry time.Duration
	MaxRetry time.Duration
}

func NewLocker(s *Store, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Locker{
		rdb:      s.rdb,
		TTL:      ttl,
		MinRetry: 20 * time.Millisecond,
		MaxRetry: 500 * time.Millisecond,
	}
}

func lockKey(key string) string { return lockPrefix + key }

// Lock blocks until the key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := lockKey(key)
	token := uuid.NewString()
	wait := l.MinRetry

	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.TTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		wait = nextBackoff(wait, l.MaxRetry)
	}

	return func() {
		// release must run even when the request ctx is already cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{k}, token).Err(); err != nil {
			log.Printf("[redis-lock] release key=%s err=%v", k, err)
		}
	}, nil
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
