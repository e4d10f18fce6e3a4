package actions

import (
	"context"
	"sync"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Guard keeps at most one action in flight per uid. Acquire either locks
// every uid or none and reports the first busy one as a ConflictError.
type Guard interface {
	Acquire(ctx context.Context, uids []string) (release func(), err error)
}

// MemoryGuard serialises actions within this process. Locks expire after
// ttl so a stuck upstream call cannot block a uid forever.
type MemoryGuard struct {
	mu    sync.Mutex
	ttl   time.Duration
	held  map[string]memoryLock
	clock func() time.Time
}

type memoryLock struct {
	token   string
	expires time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{ttl: ttl, held: make(map[string]memoryLock), clock: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, uids []string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	for _, uid := range uids {
		if lock, ok := g.held[uid]; ok && now.Before(lock.expires) {
			return nil, &apperr.ConflictError{UID: uid}
		}
	}
	token := uuid.New().String()
	for _, uid := range uids {
		g.held[uid] = memoryLock{token: token, expires: now.Add(g.ttl)}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			// An expired lock may have been taken over; leave the new holder's.
			for _, uid := range uids {
				if g.held[uid].token == token {
					delete(g.held, uid)
				}
			}
		})
	}, nil
}

// releaseScript deletes a lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares locks across dashboard instances. When Redis cannot be
// reached it degrades to the in-process fallback.
type RedisGuard struct {
	client   *redis.Client
	ttl      time.Duration
	prefix   string
	fallback *MemoryGuard
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{
		client:   client,
		ttl:      ttl,
		prefix:   "formulari:action-lock:",
		fallback: NewMemoryGuard(ttl),
	}
}

func (g *RedisGuard) Acquire(ctx context.Context, uids []string) (func(), error) {
	token := uuid.New().String()
	acquired := make([]string, 0, len(uids))

	releaseAll := func() {
		// Release must run even when the request context is already done.
		ctx := context.Background()
		for _, uid := range acquired {
			if err := releaseScript.Run(ctx, g.client, []string{g.prefix + uid}, token).Err(); err != nil {
				logger.Log.WithError(err).WithField("uid", uid).Warn("Failed to release action lock")
			}
		}
	}

	for _, uid := range uids {
		ok, err := g.client.SetNX(ctx, g.prefix+uid, token, g.ttl).Result()
		if err != nil {
			releaseAll()
			logger.Log.WithError(err).Warn("Redis unavailable for action locks, using in-process guard")
			return g.fallback.Acquire(ctx, uids)
		}
		if !ok {
			releaseAll()
			return nil, &apperr.ConflictError{UID: uid}
		}
		acquired = append(acquired, uid)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}
