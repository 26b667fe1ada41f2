package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/mantongash/cartsync/pkg/enums"
	"github.com/mantongash/cartsync/pkg/types"
)

// MemoryStore keeps snapshots in process memory. Used in tests and in
// deployments without a durable client cache.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]persistedSnapshot
	maxAge time.Duration
	now    func() time.Time
}

// NewMemoryStore builds an in-memory mirror store.
func NewMemoryStore(maxAge time.Duration) *MemoryStore {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &MemoryStore{
		data:   map[string]persistedSnapshot{},
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (s *MemoryStore) key(id types.Identity, category enums.Category) string {
	return id.Namespace() + "/" + category.String()
}

func (s *MemoryStore) Load(_ context.Context, id types.Identity, category enums.Category) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[s.key(id, category)]
	if !ok {
		return nil, nil
	}
	return fromPersisted(id, raw, s.maxAge, s.now().UTC()), nil
}

func (s *MemoryStore) Save(_ context.Context, id types.Identity, category enums.Category, items []types.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]types.Item, len(items))
	copy(copied, items)
	s.data[s.key(id, category)] = toPersisted(id, copied, s.now().UTC())
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, id types.Identity, category enums.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, s.key(id, category))
	return nil
}
