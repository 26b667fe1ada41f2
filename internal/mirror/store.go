package mirror

import (
	"context"
	"time"

	"github.com/mantongash/cartsync/pkg/enums"
	"github.com/mantongash/cartsync/pkg/types"
)

// DefaultMaxAge is the soft staleness cap for cached snapshots. It is
// deliberately looser than the server retention window: the mirror only
// avoids presenting very old data before the server is consulted, it never
// outlives server truth.
const DefaultMaxAge = 30 * 24 * time.Hour

// Snapshot is one identity's cached copy of a collection. An empty Items
// slice is a meaningful state ("intentionally emptied") and is distinct from
// a missing snapshot.
type Snapshot struct {
	Items      []types.Item
	CapturedAt time.Time
	Identity   types.Identity
}

// Store persists per-identity collection snapshots. Load returns (nil, nil)
// when no usable snapshot exists: absent, stale beyond the max age, or
// malformed (treated as absent, the key resets on next write).
type Store interface {
	Load(ctx context.Context, id types.Identity, category enums.Category) (*Snapshot, error)
	Save(ctx context.Context, id types.Identity, category enums.Category, items []types.Item) error
	Clear(ctx context.Context, id types.Identity, category enums.Category) error
}

// persistedSnapshot is the stored wire shape: epoch-ms timestamp plus the
// owning identity namespace.
type persistedSnapshot struct {
	Items     []types.Item `json:"items"`
	Timestamp int64        `json:"timestamp"`
	Identity  string       `json:"identity"`
}

func toPersisted(id types.Identity, items []types.Item, capturedAt time.Time) persistedSnapshot {
	if items == nil {
		items = []types.Item{}
	}
	return persistedSnapshot{
		Items:     items,
		Timestamp: capturedAt.UnixMilli(),
		Identity:  id.Namespace(),
	}
}

func fromPersisted(id types.Identity, raw persistedSnapshot, maxAge time.Duration, now time.Time) *Snapshot {
	if raw.Identity != id.Namespace() {
		return nil
	}
	capturedAt := time.UnixMilli(raw.Timestamp).UTC()
	if maxAge > 0 && now.Sub(capturedAt) > maxAge {
		return nil
	}
	items := raw.Items
	if items == nil {
		items = []types.Item{}
	}
	return &Snapshot{
		Items:      items,
		CapturedAt: capturedAt,
		Identity:   id,
	}
}
