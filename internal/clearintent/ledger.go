package clearintent

import (
	"context"
	"time"

	"github.com/mantongash/cartsync/pkg/enums"
	"github.com/mantongash/cartsync/pkg/types"
	"go.uber.org/multierr"
)

// DefaultMaxAge caps how long an explicit clear suppresses automatic
// repopulation. Matches the server retention window.
const DefaultMaxAge = 7 * 24 * time.Hour

// Intent records that a user explicitly emptied a collection.
type Intent struct {
	Cleared   bool
	Timestamp time.Time
	Identity  types.Identity
}

// Tier is one backing store for intents. The ledger writes through to both
// tiers and reads the session tier first.
type Tier interface {
	Get(ctx context.Context, id types.Identity, category enums.Category) (*Intent, error)
	Put(ctx context.Context, id types.Identity, category enums.Category, intent Intent) error
	Delete(ctx context.Context, id types.Identity, category enums.Category) error
}

// Ledger is the single abstraction over the session-scoped and durable
// clear-intent tiers. Expiring one tier never touches the other.
type Ledger struct {
	session Tier
	durable Tier
	maxAge  time.Duration
	now     func() time.Time
}

// NewLedger builds a ledger over the two tiers.
func NewLedger(session, durable Tier, maxAge time.Duration) *Ledger {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Ledger{
		session: session,
		durable: durable,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Mark records a clear for (identity, category) in both tiers, stamped now.
// Tier failures are combined rather than short-circuited so one degraded
// store never loses the other tier's write.
func (l *Ledger) Mark(ctx context.Context, id types.Identity, category enums.Category) error {
	intent := Intent{
		Cleared:   true,
		Timestamp: l.now().UTC(),
		Identity:  id,
	}
	var errs []error
	if l.session != nil {
		if err := l.session.Put(ctx, id, category, intent); err != nil {
			errs = append(errs, err)
		}
	}
	if l.durable != nil {
		if err := l.durable.Put(ctx, id, category, intent); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

// Active reports whether an unexpired intent suppresses (identity, category).
// The session tier is consulted first, then the durable tier. An expired
// intent found during the read is deleted from that tier as a side effect.
func (l *Ledger) Active(ctx context.Context, id types.Identity, category enums.Category) (bool, error) {
	if ok, err := l.activeInTier(ctx, l.session, id, category); err != nil || ok {
		return ok, err
	}
	return l.activeInTier(ctx, l.durable, id, category)
}

// DurableActive consults only the durable tier. The reconciliation merge
// check uses it: a guest clear from a previous session must suppress the
// merge even when the current session tier is empty.
func (l *Ledger) DurableActive(ctx context.Context, id types.Identity, category enums.Category) (bool, error) {
	return l.activeInTier(ctx, l.durable, id, category)
}

// Invalidate removes the intent from both tiers. Called on any manual add.
func (l *Ledger) Invalidate(ctx context.Context, id types.Identity, category enums.Category) error {
	var errs []error
	if l.session != nil {
		if err := l.session.Delete(ctx, id, category); err != nil {
			errs = append(errs, err)
		}
	}
	if l.durable != nil {
		if err := l.durable.Delete(ctx, id, category); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

func (l *Ledger) activeInTier(ctx context.Context, tier Tier, id types.Identity, category enums.Category) (bool, error) {
	if tier == nil {
		return false, nil
	}
	intent, err := tier.Get(ctx, id, category)
	if err != nil {
		return false, err
	}
	if intent == nil || !intent.Cleared {
		return false, nil
	}
	if intent.Identity.Namespace() != id.Namespace() {
		return false, nil
	}
	if l.now().UTC().Sub(intent.Timestamp) > l.maxAge {
		// Consume the stale marker from this tier only.
		_ = tier.Delete(ctx, id, category)
		return false, nil
	}
	return true, nil
}
