package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mantongash/cartsync/internal/collection"
	"github.com/mantongash/cartsync/pkg/enums"
	"github.com/mantongash/cartsync/pkg/logger"
	"github.com/mantongash/cartsync/pkg/types"
	"gorm.io/gorm"
)

type purgeCall struct {
	userID   uuid.UUID
	category enums.Category
}

type fakeSweepRepo struct {
	collection.Repository

	owners     []collection.ExpiredOwner
	scanErr    error
	purgeErr   map[uuid.UUID]error
	lastCutoff time.Time
	deleted    []purgeCall
	nulled     []purgeCall
}

func (f *fakeSweepRepo) WithTx(*gorm.DB) collection.Repository { return f }

func (f *fakeSweepRepo) FindExpiredOwners(_ context.Context, cutoff time.Time) ([]collection.ExpiredOwner, error) {
	f.lastCutoff = cutoff
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return f.owners, nil
}

func (f *fakeSweepRepo) DeleteAllItems(_ context.Context, userID uuid.UUID, category enums.Category) error {
	if err := f.purgeErr[userID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, purgeCall{userID: userID, category: category})
	return nil
}

func (f *fakeSweepRepo) NullActivity(_ context.Context, userID uuid.UUID, category enums.Category) error {
	f.nulled = append(f.nulled, purgeCall{userID: userID, category: category})
	return nil
}

type expiredEvent struct {
	identity  types.Identity
	category  enums.Category
	itemCount int
}

type fakeExpirySink struct {
	expired []expiredEvent
}

func (f *fakeExpirySink) Synced(context.Context, types.Identity, enums.Category, int) {}

func (f *fakeExpirySink) Expired(_ context.Context, id types.Identity, category enums.Category, itemCount int) {
	f.expired = append(f.expired, expiredEvent{identity: id, category: category, itemCount: itemCount})
}

type sweepFakeTxRunner struct{}

func (sweepFakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newCollectionExpiryJob(t *testing.T, repo *fakeSweepRepo, sink *fakeExpirySink) *collectionExpiryJob {
	t.Helper()
	jobIface, err := NewCollectionExpiryJob(CollectionExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         sweepFakeTxRunner{},
		Repository: repo,
		Notifier:   sink,
	})
	if err != nil {
		t.Fatalf("NewCollectionExpiryJob: %v", err)
	}
	job, ok := jobIface.(*collectionExpiryJob)
	if !ok {
		t.Fatalf("expected collectionExpiryJob, got %T", jobIface)
	}
	return job
}

func TestCollectionExpiryJobPurgesExpiredOwners(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	idleCart := collection.ExpiredOwner{UserID: uuid.New(), Category: enums.CategoryCart, ItemCount: 3}
	idleFavs := collection.ExpiredOwner{UserID: uuid.New(), Category: enums.CategoryFavorites, ItemCount: 1}
	repo := &fakeSweepRepo{owners: []collection.ExpiredOwner{idleCart, idleFavs}}
	sink := &fakeExpirySink{}
	job := newCollectionExpiryJob(t, repo, sink)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.Add(-defaultCollectionRetention)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if len(repo.deleted) != 2 || len(repo.nulled) != 2 {
		t.Fatalf("expected 2 purges, got deleted=%d nulled=%d", len(repo.deleted), len(repo.nulled))
	}
	if repo.deleted[0].userID != idleCart.UserID || repo.deleted[0].category != enums.CategoryCart {
		t.Fatalf("unexpected first purge: %+v", repo.deleted[0])
	}
	if len(sink.expired) != 2 {
		t.Fatalf("expected 2 expiry events, got %d", len(sink.expired))
	}
	if sink.expired[0].identity != types.User(idleCart.UserID.String()) || sink.expired[0].itemCount != 3 {
		t.Fatalf("unexpected expiry event: %+v", sink.expired[0])
	}
}

func TestCollectionExpiryJobIsolatesPerOwnerFailures(t *testing.T) {
	bad := collection.ExpiredOwner{UserID: uuid.New(), Category: enums.CategoryCart, ItemCount: 2}
	good := collection.ExpiredOwner{UserID: uuid.New(), Category: enums.CategoryCart, ItemCount: 1}
	repo := &fakeSweepRepo{
		owners:   []collection.ExpiredOwner{bad, good},
		purgeErr: map[uuid.UUID]error{bad.UserID: errors.New("boom")},
	}
	sink := &fakeExpirySink{}
	job := newCollectionExpiryJob(t, repo, sink)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when a purge fails")
	}
	if len(repo.deleted) != 1 || repo.deleted[0].userID != good.UserID {
		t.Fatalf("expected the healthy owner to still be purged, got %+v", repo.deleted)
	}
	if len(sink.expired) != 1 || sink.expired[0].identity != types.User(good.UserID.String()) {
		t.Fatalf("expected one expiry event for the healthy owner, got %+v", sink.expired)
	}
}

func TestCollectionExpiryJobPropagatesScanErrors(t *testing.T) {
	repo := &fakeSweepRepo{scanErr: errors.New("db down")}
	job := newCollectionExpiryJob(t, repo, &fakeExpirySink{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
