package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mantongash/cartsync/internal/collection"
	"github.com/mantongash/cartsync/internal/notify"
	"github.com/mantongash/cartsync/pkg/logger"
	"github.com/mantongash/cartsync/pkg/metrics"
	"github.com/mantongash/cartsync/pkg/types"
	"gorm.io/gorm"
)

const defaultCollectionRetention = collection.DefaultRetention

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type collectionSweepRepo interface {
	WithTx(tx *gorm.DB) collection.Repository
	FindExpiredOwners(ctx context.Context, cutoff time.Time) ([]collection.ExpiredOwner, error)
}

// CollectionExpiryJobParams configure the collection expiry sweep.
type CollectionExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository collectionSweepRepo
	Metrics    *metrics.JobMetrics
	Notifier   notify.Sink
	Retention  time.Duration
}

// NewCollectionExpiryJob builds the sweep that purges collections whose
// owner has been inactive past the retention window.
func NewCollectionExpiryJob(params CollectionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("collection repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultCollectionRetention
	}
	return &collectionExpiryJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		metrics:   params.Metrics,
		notifier:  params.Notifier,
		retention: retention,
		now:       time.Now,
	}, nil
}

type collectionExpiryJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      collectionSweepRepo
	metrics   *metrics.JobMetrics
	notifier  notify.Sink
	retention time.Duration
	now       func() time.Time
}

func (j *collectionExpiryJob) Name() string { return "collection-expiry" }

// Run purges every non-empty collection whose last activity predates the
// retention cutoff. Each owner is purged in its own transaction so one bad
// row never aborts the whole sweep.
func (j *collectionExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	owners, err := j.repo.FindExpiredOwners(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("scan expired collections: %w", err)
	}

	purged := 0
	var firstErr error
	for _, owner := range owners {
		ownerCtx := j.logg.WithFields(ctx, map[string]any{
			"user_id":  owner.UserID.String(),
			"category": owner.Category.String(),
			"items":    owner.ItemCount,
		})
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := j.repo.WithTx(tx)
			if err := repo.DeleteAllItems(ctx, owner.UserID, owner.Category); err != nil {
				return err
			}
			return repo.NullActivity(ctx, owner.UserID, owner.Category)
		})
		if err != nil {
			j.logg.Error(ownerCtx, "failed to purge expired collection", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		purged++
		j.metrics.AddPurged(owner.Category.String(), owner.ItemCount)
		if j.notifier != nil {
			j.notifier.Expired(ctx, types.User(owner.UserID.String()), owner.Category, owner.ItemCount)
		}
		j.logg.Info(ownerCtx, "purged expired collection")
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(owners),
		"purged":  purged,
	})
	j.logg.Info(logCtx, "collection expiry sweep complete")
	if firstErr != nil {
		return fmt.Errorf("collection expiry: %w", firstErr)
	}
	return nil
}
