package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still carries our token, so a
// lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held resource lock.
type Lock struct {
	key   string
	token string
}

// LockStore handles short-lived dispatch resource locks in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireVehicleLock attempts to lock a vehicle for dispatching.
// Returns nil and no error when the lock is already held.
func (s *LockStore) AcquireVehicleLock(ctx context.Context, vehicleID string, ttl time.Duration) (*Lock, error) {
	return s.acquire(ctx, "lock:vehicle:"+vehicleID, ttl)
}

// AcquireDriverLock attempts to lock a driver for dispatching.
// Returns nil and no error when the lock is already held.
func (s *LockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (*Lock, error) {
	return s.acquire(ctx, "lock:driver:"+driverID, ttl)
}

func (s *LockStore) acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lock{key: key, token: token}, nil
}

// Release frees a lock taken by this store.
func (s *LockStore) Release(ctx context.Context, l *Lock) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, s.client, []string{l.key}, l.token).Err()
}
