package sync

import (
	"context"

	"github.com/mantongash/cartsync/pkg/enums"
	"github.com/mantongash/cartsync/pkg/types"
)

// Reconcile rebuilds the in-memory state for every category at session start.
// For authenticated engines the server wins whenever it is reachable; a
// non-empty server collection is adopted as-is and never unioned with guest
// data. The guest collection only merges upward when the server comes back
// empty and no durable guest clear stands in the way. guestID names the
// pre-sign-in identity; pass the zero Identity when there is none.
func (e *Engine) Reconcile(ctx context.Context, guestID types.Identity) error {
	for _, category := range enums.Categories() {
		e.reconcileCategory(ctx, guestID, category)
	}
	return nil
}

func (e *Engine) reconcileCategory(ctx context.Context, guestID types.Identity, category enums.Category) {
	logCtx := e.opCtx(ctx, category, "reconcile")

	active, err := e.ledger.Active(ctx, e.identity, category)
	if err != nil {
		e.logg.Error(logCtx, "clear-intent lookup failed; treating as absent", err)
	}
	if active {
		// The user meant for this collection to stay empty.
		e.adopt(category, nil)
		e.persistMirror(ctx, category, []types.Item{})
		e.logg.Info(logCtx, "clear intent active; collection stays empty")
		return
	}

	if !e.authenticated {
		e.adopt(category, e.loadMirror(ctx, category, e.identity))
		return
	}

	serverItems, err := e.remote.List(ctx, category)
	if err != nil {
		// Offline fallback: the user's own mirror, never guest data.
		e.logg.Error(logCtx, "server list failed; falling back to mirror", err)
		e.adopt(category, e.loadMirror(ctx, category, e.identity))
		return
	}

	if len(serverItems) > 0 {
		e.adopt(category, serverItems)
		e.persistMirror(ctx, category, serverItems)
		return
	}

	merged := e.mergeGuest(ctx, guestID, category)
	if !merged {
		e.adopt(category, nil)
		e.persistMirror(ctx, category, []types.Item{})
		return
	}

	// Re-read so the adopted state reflects the server's merge resolution.
	serverItems, err = e.remote.List(ctx, category)
	if err != nil {
		e.logg.Error(logCtx, "post-merge list failed; falling back to mirror", err)
		e.adopt(category, e.loadMirror(ctx, category, e.identity))
		return
	}
	e.adopt(category, serverItems)
	e.persistMirror(ctx, category, serverItems)
}

// mergeGuest pushes the guest mirror up to the empty server collection.
// Returns false when nothing was merged.
func (e *Engine) mergeGuest(ctx context.Context, guestID types.Identity, category enums.Category) bool {
	if guestID.IsZero() || !guestID.IsGuest() {
		return false
	}
	logCtx := e.opCtx(ctx, category, "merge")

	guestCleared, err := e.ledger.DurableActive(ctx, guestID, category)
	if err != nil {
		e.logg.Error(logCtx, "guest clear-intent lookup failed; skipping merge", err)
		return false
	}
	if guestCleared {
		e.logg.Info(logCtx, "guest clear intent active; skipping merge")
		return false
	}

	guestItems := e.loadMirror(ctx, category, guestID)
	if len(guestItems) == 0 {
		return false
	}

	pushed := 0
	for _, item := range guestItems {
		if err := e.remote.Add(ctx, category, item); err != nil {
			// One bad item must not sink the rest of the merge.
			e.logg.Error(logCtx, "failed to push guest item", err)
			continue
		}
		pushed++
	}
	if pushed == 0 {
		return false
	}

	if err := e.mirror.Clear(ctx, guestID, category); err != nil {
		e.logg.Error(logCtx, "failed to clear guest mirror after merge", err)
	}
	if e.notifier != nil {
		e.notifier.Synced(ctx, e.identity, category, pushed)
	}
	e.logg.Info(e.logg.WithField(logCtx, "items", pushed), "guest collection merged")
	return true
}

func (e *Engine) loadMirror(ctx context.Context, category enums.Category, id types.Identity) []types.Item {
	snapshot, err := e.mirror.Load(ctx, id, category)
	if err != nil {
		e.logg.Error(e.opCtx(ctx, category, "mirror"), "mirror load failed; treating as absent", err)
		return nil
	}
	if snapshot == nil {
		return nil
	}
	return snapshot.Items
}
