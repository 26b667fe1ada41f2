package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/mantongash/cartsync/internal/clearintent"
	"github.com/mantongash/cartsync/internal/mirror"
	"github.com/mantongash/cartsync/internal/notify"
	"github.com/mantongash/cartsync/pkg/enums"
	pkgerrors "github.com/mantongash/cartsync/pkg/errors"
	"github.com/mantongash/cartsync/pkg/logger"
	"github.com/mantongash/cartsync/pkg/types"
)

// Snapshot is the read model handed to callers: the current items plus
// derived counters. Total is the quantity sum for the cart and the item
// count for favorites.
type Snapshot struct {
	Items []types.Item
	Count int
	Total int
}

// Ledger is the clear-intent surface the engine needs.
type Ledger interface {
	Mark(ctx context.Context, id types.Identity, category enums.Category) error
	Active(ctx context.Context, id types.Identity, category enums.Category) (bool, error)
	DurableActive(ctx context.Context, id types.Identity, category enums.Category) (bool, error)
	Invalidate(ctx context.Context, id types.Identity, category enums.Category) error
}

var _ Ledger = (*clearintent.Ledger)(nil)

// EngineParams carry the engine dependencies.
type EngineParams struct {
	Logger   *logger.Logger
	Mirror   mirror.Store
	Ledger   Ledger
	Remote   Remote
	Notifier notify.Sink
}

// Engine owns the in-memory collection state for one identity and keeps the
// mirror, the clear-intent ledger, and the server converging toward it.
// Mutations apply optimistically: memory first, then the mirror, then a
// best-effort server call. Persistence failures are logged, never surfaced.
type Engine struct {
	logg     *logger.Logger
	mirror   mirror.Store
	ledger   Ledger
	remote   Remote
	notifier notify.Sink

	mu            gosync.Mutex
	identity      types.Identity
	authenticated bool
	state         map[enums.Category][]types.Item

	now   func() time.Time
	spawn func(fn func())
}

// NewEngine builds an engine for the given identity. Authenticated engines
// push mutations to the server; guest engines stay fully local.
func NewEngine(identity types.Identity, authenticated bool, params EngineParams) (*Engine, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identity is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger required")
	}
	if params.Mirror == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mirror store required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "clear-intent ledger required")
	}
	if authenticated && params.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote required for authenticated engines")
	}
	return &Engine{
		logg:          params.Logger,
		mirror:        params.Mirror,
		ledger:        params.Ledger,
		remote:        params.Remote,
		notifier:      params.Notifier,
		identity:      identity,
		authenticated: authenticated,
		state:         map[enums.Category][]types.Item{},
		now:           time.Now,
		spawn:         func(fn func()) { go fn() },
	}, nil
}

// Identity returns the identity the engine serves.
func (e *Engine) Identity() types.Identity {
	return e.identity
}

// Get returns the current snapshot for a category.
func (e *Engine) Get(category enums.Category) (Snapshot, error) {
	if !category.IsValid() {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown collection category")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(category), nil
}

// Add merges the item into memory, drops any clear suppression, persists the
// mirror, and pushes the change to the server when authenticated.
func (e *Engine) Add(ctx context.Context, category enums.Category, item types.Item) error {
	if !category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown collection category")
	}
	if item.ProductRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product ref is required")
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = e.now().UTC()
	}

	e.mu.Lock()
	items := e.state[category]
	existing := -1
	for i := range items {
		if items[i].ProductRef == item.ProductRef {
			existing = i
			break
		}
	}
	merged := item
	if existing >= 0 {
		if category.UsesQuantity() {
			items[existing].Quantity += item.Quantity
		}
		merged = items[existing]
	} else {
		items = append(items, item)
		e.state[category] = items
	}
	persisted := e.snapshotItemsLocked(category)
	e.mu.Unlock()

	// A manual add always cancels a pending clear.
	if err := e.ledger.Invalidate(ctx, e.identity, category); err != nil {
		e.logg.Error(e.opCtx(ctx, category, "add"), "failed to invalidate clear intent", err)
	}
	e.persistMirror(ctx, category, persisted)

	if e.authenticated {
		alreadyPresent := existing >= 0
		e.spawn(func() {
			remoteCtx, cancel := e.remoteCtx(ctx)
			defer cancel()
			var err error
			if alreadyPresent && category.UsesQuantity() {
				err = e.remote.Update(remoteCtx, category, merged.ProductRef, merged.Quantity)
			} else {
				// Re-adding an existing favorite still goes to the server:
				// the duplicate add refreshes the entry's added_at there.
				err = e.remote.Add(remoteCtx, category, merged)
			}
			if err != nil {
				e.logg.Error(e.opCtx(ctx, category, "add"), "server add failed; local state kept", err)
			}
		})
	}
	return nil
}

// Remove drops the item from memory and the server. Removing an absent ref
// is a no-op aside from refreshing the mirror.
func (e *Engine) Remove(ctx context.Context, category enums.Category, productRef string) error {
	if !category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown collection category")
	}
	if productRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product ref is required")
	}

	e.mu.Lock()
	items := e.state[category]
	filtered := items[:0]
	for _, candidate := range items {
		if candidate.ProductRef != productRef {
			filtered = append(filtered, candidate)
		}
	}
	e.state[category] = filtered
	persisted := e.snapshotItemsLocked(category)
	e.mu.Unlock()

	e.persistMirror(ctx, category, persisted)

	if e.authenticated {
		e.spawn(func() {
			remoteCtx, cancel := e.remoteCtx(ctx)
			defer cancel()
			if err := e.remote.Remove(remoteCtx, category, productRef); err != nil {
				e.logg.Error(e.opCtx(ctx, category, "remove"), "server remove failed; local state kept", err)
			}
		})
	}
	return nil
}

// Update sets the quantity of a cart entry. Non-positive quantities remove
// the entry instead.
func (e *Engine) Update(ctx context.Context, category enums.Category, productRef string, quantity int) error {
	if !category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown collection category")
	}
	if !category.UsesQuantity() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity updates only apply to the cart")
	}
	if productRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product ref is required")
	}
	if quantity <= 0 {
		return e.Remove(ctx, category, productRef)
	}

	e.mu.Lock()
	items := e.state[category]
	found := false
	for i := range items {
		if items[i].ProductRef == productRef {
			items[i].Quantity = quantity
			found = true
			break
		}
	}
	persisted := e.snapshotItemsLocked(category)
	e.mu.Unlock()

	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "collection item not found")
	}

	e.persistMirror(ctx, category, persisted)

	if e.authenticated {
		e.spawn(func() {
			remoteCtx, cancel := e.remoteCtx(ctx)
			defer cancel()
			if err := e.remote.Update(remoteCtx, category, productRef, quantity); err != nil {
				e.logg.Error(e.opCtx(ctx, category, "update"), "server update failed; local state kept", err)
			}
		})
	}
	return nil
}

// Clear empties the category, records the clear intent in both ledger tiers,
// persists the empty mirror, then deletes server state best-effort.
func (e *Engine) Clear(ctx context.Context, category enums.Category) error {
	if !category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown collection category")
	}

	e.mu.Lock()
	cleared := e.state[category]
	e.state[category] = nil
	e.mu.Unlock()

	if err := e.ledger.Mark(ctx, e.identity, category); err != nil {
		e.logg.Error(e.opCtx(ctx, category, "clear"), "failed to record clear intent", err)
	}
	e.persistMirror(ctx, category, []types.Item{})

	if e.authenticated {
		e.spawn(func() {
			remoteCtx, cancel := e.remoteCtx(ctx)
			defer cancel()
			for _, item := range cleared {
				if err := e.remote.Remove(remoteCtx, category, item.ProductRef); err != nil {
					e.logg.Error(e.opCtx(ctx, category, "clear"), "server item delete failed", err)
				}
			}
			if err := e.remote.Clear(remoteCtx, category); err != nil {
				e.logg.Error(e.opCtx(ctx, category, "clear"), "server clear failed; local state kept", err)
			}
		})
	}
	return nil
}

// adopt replaces the in-memory items for a category. Reconciliation only.
func (e *Engine) adopt(category enums.Category, items []types.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state[category] = append([]types.Item(nil), items...)
}

func (e *Engine) snapshotLocked(category enums.Category) Snapshot {
	items := e.snapshotItemsLocked(category)
	total := len(items)
	if category.UsesQuantity() {
		total = 0
		for _, item := range items {
			total += item.Quantity
		}
	}
	return Snapshot{Items: items, Count: len(items), Total: total}
}

func (e *Engine) snapshotItemsLocked(category enums.Category) []types.Item {
	return append([]types.Item(nil), e.state[category]...)
}

// persistMirror writes the current items, empty included: an empty mirror is
// a meaningful record, not a missing one.
func (e *Engine) persistMirror(ctx context.Context, category enums.Category, items []types.Item) {
	if err := e.mirror.Save(ctx, e.identity, category, items); err != nil {
		e.logg.Error(e.opCtx(ctx, category, "mirror"), "failed to persist mirror", err)
	}
}

func (e *Engine) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
}

func (e *Engine) opCtx(ctx context.Context, category enums.Category, op string) context.Context {
	logCtx := e.logg.WithIdentity(ctx, e.identity.Namespace())
	logCtx = e.logg.WithCategory(logCtx, category.String())
	return e.logg.WithField(logCtx, "op", op)
}
