package collection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mantongash/cartsync/pkg/db/models"
	"github.com/mantongash/cartsync/pkg/enums"
	pkgerrors "github.com/mantongash/cartsync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCollectionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	items := `
CREATE TABLE IF NOT EXISTS collection_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  category TEXT NOT NULL,
  product_ref TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  added_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, category, product_ref)
);`
	activity := `
CREATE TABLE IF NOT EXISTS collection_activity (
  user_id TEXT NOT NULL,
  category TEXT NOT NULL,
  last_active_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  PRIMARY KEY (user_id, category)
);`
	require.NoError(t, db.Exec(items).Error)
	require.NoError(t, db.Exec(activity).Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T, db *gorm.DB, now func() time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo: NewRepository(db),
		Tx:   gormTxRunner{db: db},
		Now:  now,
	})
	require.NoError(t, err)
	return svc
}

func TestService_AddMergesByProductRef(t *testing.T) {
	ctx := context.Background()
	db := setupCollectionTestDB(t)
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, func() time.Time { return base })
	userID := uuid.New()

	require.NoError(t, svc.Add(ctx, userID, enums.CategoryCart, "sku-1", 2))
	require.NoError(t, svc.Add(ctx, userID, enums.CategoryCart, "sku-1", 3))

	dto, err := svc.List(ctx, userID, enums.CategoryCart)
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, "sku-1", dto.Items[0].ProductRef)
	assert.Equal(t, 5, dto.Items[0].Quantity)
	require.NotNil(t, dto.Expiry)
	assert.Equal(t, base.Add(DefaultRetention), *dto.Expiry)
}

func TestService_DuplicateFavoriteIsNoOp(t *testing.T) {
	ctx := context.Background()
	db := setupCollectionTestDB(t)
	svc := newTestService(t, db, time.Now)
	userID := uuid.New()

	require.NoError(t, svc.Add(ctx, userID, enums.CategoryFavorites, "sku-9", 1))
	require.NoError(t, svc.Add(ctx, userID, enums.CategoryFavorites, "sku-9", 4))

	dto, err := svc.List(ctx, userID, enums.CategoryFavorites)
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Zero(t, dto.Items[0].Quantity)
}

func TestService_ListCompactsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	db := setupCollectionTestDB(t)
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(t, db, func() time.Time { return clock })
	userID := uuid.New()

	require.NoError(t, svc.Add(ctx, userID, enums.CategoryCart, "old-sku", 1))

	clock = base.Add(DefaultRetention - time.Hour)
	require.NoError(t, svc.Add(ctx, userID, enums.CategoryCart, "fresh-sku", 1))

	clock = base.Add(DefaultRetention + time.Hour)
	dto, err := svc.List(ctx, userID, enums.CategoryCart)
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, "fresh-sku", dto.Items[0].ProductRef)

	// The expired row was removed, not just filtered from the response.
	var count int64
	require.NoError(t, db.Model(&models.CollectionItem{}).
		Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestService_UpdateQuantity(t *testing.T) {
	ctx := context.Background()
	db := setupCollectionTestDB(t)
	svc := newTestService(t, db, time.Now)
	userID := uuid.New()

	require.NoError(t, svc.Add(ctx, userID, enums.CategoryCart, "sku-7", 2))
	require.NoError(t, svc.UpdateQuantity(ctx, userID, enums.CategoryCart, "sku-7", 6))

	dto, err := svc.List(ctx, userID, enums.CategoryCart)
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, 6, dto.Items[0].Quantity)

	// Non-positive quantity removes the entry.
	require.NoError(t, svc.UpdateQuantity(ctx, userID, enums.CategoryCart, "sku-7", 0))
	dto, err = svc.List(ctx, userID, enums.CategoryCart)
	require.NoError(t, err)
	assert.Empty(t, dto.Items)

	err = svc.UpdateQuantity(ctx, userID, enums.CategoryFavorites, "sku-7", 2)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = svc.UpdateQuantity(ctx, userID, enums.CategoryCart, "missing", 2)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestService_ClearNullsActivity(t *testing.T) {
	ctx := context.Background()
	db := setupCollectionTestDB(t)
	svc := newTestService(t, db, time.Now)
	userID := uuid.New()

	require.NoError(t, svc.Add(ctx, userID, enums.CategoryCart, "sku-1", 1))
	require.NoError(t, svc.Clear(ctx, userID, enums.CategoryCart))

	dto, err := svc.List(ctx, userID, enums.CategoryCart)
	require.NoError(t, err)
	assert.Empty(t, dto.Items)
	assert.Nil(t, dto.Expiry)
}

func TestRepository_FindExpiredOwners(t *testing.T) {
	ctx := context.Background()
	db := setupCollectionTestDB(t)
	base := time.Date(2026, 8, 10, 8, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(t, db, func() time.Time { return clock })
	repo := NewRepository(db)

	idle := uuid.New()
	active := uuid.New()
	require.NoError(t, svc.Add(ctx, idle, enums.CategoryCart, "sku-a", 1))
	require.NoError(t, svc.Add(ctx, idle, enums.CategoryFavorites, "sku-b", 1))

	clock = base.Add(DefaultRetention + time.Hour)
	require.NoError(t, svc.Add(ctx, active, enums.CategoryCart, "sku-c", 1))

	owners, err := repo.FindExpiredOwners(ctx, clock.Add(-DefaultRetention))
	require.NoError(t, err)
	require.Len(t, owners, 2)
	for _, owner := range owners {
		assert.Equal(t, idle, owner.UserID)
		assert.Equal(t, 1, owner.ItemCount)
	}
}
