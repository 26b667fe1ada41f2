package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mantongash/cartsync/pkg/enums"
	pkgredis "github.com/mantongash/cartsync/pkg/redis"
	"github.com/mantongash/cartsync/pkg/types"
)

// kvStore is the subset of the redis client the mirror needs.
type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	MirrorKey(identity, category string) string
}

// RedisStore is the durable mirror tier. Snapshots expire from Redis at the
// max age; Load additionally applies the age check so a snapshot written by
// an older deployment with a longer TTL is still filtered.
type RedisStore struct {
	kv     kvStore
	maxAge time.Duration
	now    func() time.Time
}

// NewRedisStore builds the Redis-backed mirror store.
func NewRedisStore(kv kvStore, maxAge time.Duration) (*RedisStore, error) {
	if kv == nil {
		return nil, errors.New("redis store required for mirror")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &RedisStore{kv: kv, maxAge: maxAge, now: time.Now}, nil
}

func (s *RedisStore) Load(ctx context.Context, id types.Identity, category enums.Category) (*Snapshot, error) {
	raw, err := s.kv.Get(ctx, s.kv.MirrorKey(id.Namespace(), category.String()))
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var persisted persistedSnapshot
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		// Malformed payloads behave as absent; the key resets on next write.
		return nil, nil
	}
	return fromPersisted(id, persisted, s.maxAge, s.now().UTC()), nil
}

func (s *RedisStore) Save(ctx context.Context, id types.Identity, category enums.Category, items []types.Item) error {
	payload, err := json.Marshal(toPersisted(id, items, s.now().UTC()))
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.kv.MirrorKey(id.Namespace(), category.String()), payload, s.maxAge)
}

func (s *RedisStore) Clear(ctx context.Context, id types.Identity, category enums.Category) error {
	return s.kv.Del(ctx, s.kv.MirrorKey(id.Namespace(), category.String()))
}
