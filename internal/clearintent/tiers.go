package clearintent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/mantongash/cartsync/pkg/enums"
	pkgredis "github.com/mantongash/cartsync/pkg/redis"
	"github.com/mantongash/cartsync/pkg/types"
)

// MemoryTier is the session-scoped tier: it lives and dies with the process.
type MemoryTier struct {
	mu   sync.Mutex
	data map[string]Intent
}

// NewMemoryTier builds the in-process session tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{data: map[string]Intent{}}
}

func tierKey(id types.Identity, category enums.Category) string {
	return id.Namespace() + "/" + category.String()
}

func (t *MemoryTier) Get(_ context.Context, id types.Identity, category enums.Category) (*Intent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	intent, ok := t.data[tierKey(id, category)]
	if !ok {
		return nil, nil
	}
	return &intent, nil
}

func (t *MemoryTier) Put(_ context.Context, id types.Identity, category enums.Category, intent Intent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[tierKey(id, category)] = intent
	return nil
}

func (t *MemoryTier) Delete(_ context.Context, id types.Identity, category enums.Category) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, tierKey(id, category))
	return nil
}

// kvStore is the subset of the redis client the durable tier needs.
type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ClearIntentKey(identity, category string) string
}

// RedisTier is the durable tier: survives restarts, expires via TTL.
type RedisTier struct {
	kv  kvStore
	ttl time.Duration
}

// NewRedisTier builds the Redis-backed durable tier.
func NewRedisTier(kv kvStore, ttl time.Duration) (*RedisTier, error) {
	if kv == nil {
		return nil, errors.New("redis store required for clear-intent tier")
	}
	if ttl <= 0 {
		ttl = DefaultMaxAge
	}
	return &RedisTier{kv: kv, ttl: ttl}, nil
}

// persistedIntent is the stored wire shape.
type persistedIntent struct {
	Cleared   bool   `json:"cleared"`
	Timestamp int64  `json:"timestamp"`
	Identity  string `json:"identity"`
}

func (t *RedisTier) Get(ctx context.Context, id types.Identity, category enums.Category) (*Intent, error) {
	raw, err := t.kv.Get(ctx, t.kv.ClearIntentKey(id.Namespace(), category.String()))
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var persisted persistedIntent
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		// Malformed markers behave as absent.
		return nil, nil
	}
	if persisted.Identity != id.Namespace() {
		return nil, nil
	}
	return &Intent{
		Cleared:   persisted.Cleared,
		Timestamp: time.UnixMilli(persisted.Timestamp).UTC(),
		Identity:  id,
	}, nil
}

func (t *RedisTier) Put(ctx context.Context, id types.Identity, category enums.Category, intent Intent) error {
	payload, err := json.Marshal(persistedIntent{
		Cleared:   intent.Cleared,
		Timestamp: intent.Timestamp.UnixMilli(),
		Identity:  id.Namespace(),
	})
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, t.kv.ClearIntentKey(id.Namespace(), category.String()), payload, t.ttl)
}

func (t *RedisTier) Delete(ctx context.Context, id types.Identity, category enums.Category) error {
	return t.kv.Del(ctx, t.kv.ClearIntentKey(id.Namespace(), category.String()))
}
