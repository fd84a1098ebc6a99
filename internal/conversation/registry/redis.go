package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/isaacasamoah/piano-move-ai/internal/conversation/domain"
	"github.com/isaacasamoah/piano-move-ai/platform/apperr"
)

const keyPrefix = "session:"

// Redis stores sessions as JSON values with a TTL, so a crashed or abandoned
// call expires on its own instead of leaking.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed registry from a redis:// URL.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "parse redis url", err)
	}
	return &Redis{client: redis.NewClient(opts), ttl: ttl}, nil
}

// NewRedisWithClient wraps an existing client. Used by tests with miniredis.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Ping verifies connectivity at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Create(ctx context.Context, s *domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "encode session", err)
	}

	ok, err := r.client.SetNX(ctx, keyPrefix+s.ID, data, r.ttl).Result()
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "store session", err)
	}
	if !ok {
		return errDuplicate(s.ID)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errUnknown(id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "fetch session", err)
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "decode session", err)
	}
	if s.Fields == nil {
		s.Fields = make(map[string]string)
	}
	if s.Attempts == nil {
		s.Attempts = make(map[string]int)
	}
	return &s, nil
}

func (r *Redis) Save(ctx context.Context, s *domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "encode session", err)
	}

	// XX refuses the write when the key is gone, which is exactly the
	// discard-after-end behavior the engine relies on.
	ok, err := r.client.SetXX(ctx, keyPrefix+s.ID, data, r.ttl).Result()
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "store session", err)
	}
	if !ok {
		return errUnknown(s.ID)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return apperr.Wrap(apperr.KindInternal, "remove session", err)
	}
	return nil
}

func (r *Redis) Len(ctx context.Context) (int, error) {
	var count int
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return 0, apperr.Wrap(apperr.KindInternal, "scan sessions", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

var _ Registry = (*Redis)(nil)
