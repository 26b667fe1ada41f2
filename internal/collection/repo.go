package collection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mantongash/cartsync/pkg/db/models"
	"github.com/mantongash/cartsync/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a collection repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListItems(ctx context.Context, userID uuid.UUID, category enums.Category) ([]models.CollectionItem, error) {
	var items []models.CollectionItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND category = ?", userID, category).
		Order("added_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindItem(ctx context.Context, userID uuid.UUID, category enums.Category, productRef string) (*models.CollectionItem, error) {
	var item models.CollectionItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND category = ? AND product_ref = ?", userID, category, productRef).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.CollectionItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) SaveItem(ctx context.Context, item *models.CollectionItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) DeleteItem(ctx context.Context, userID uuid.UUID, category enums.Category, productRef string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND category = ? AND product_ref = ?", userID, category, productRef).
		Delete(&models.CollectionItem{}).Error
}

func (r *repository) DeleteItemsBefore(ctx context.Context, userID uuid.UUID, category enums.Category, cutoff time.Time) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND category = ? AND added_at < ?", userID, category, cutoff).
		Delete(&models.CollectionItem{}).Error
}

func (r *repository) DeleteAllItems(ctx context.Context, userID uuid.UUID, category enums.Category) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND category = ?", userID, category).
		Delete(&models.CollectionItem{}).Error
}

func (r *repository) GetActivity(ctx context.Context, userID uuid.UUID, category enums.Category) (*models.CollectionActivity, error) {
	var activity models.CollectionActivity
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND category = ?", userID, category).
		First(&activity).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *repository) TouchActivity(ctx context.Context, userID uuid.UUID, category enums.Category, at time.Time) error {
	activity := models.CollectionActivity{
		UserID:       userID,
		Category:     category,
		LastActiveAt: &at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "category"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_active_at", "updated_at"}),
		}).
		Create(&activity).Error
}

func (r *repository) NullActivity(ctx context.Context, userID uuid.UUID, category enums.Category) error {
	return r.db.WithContext(ctx).
		Model(&models.CollectionActivity{}).
		Where("user_id = ? AND category = ?", userID, category).
		Update("last_active_at", nil).Error
}

func (r *repository) FindExpiredOwners(ctx context.Context, cutoff time.Time) ([]ExpiredOwner, error) {
	var owners []ExpiredOwner
	err := r.db.WithContext(ctx).
		Model(&models.CollectionActivity{}).
		Select("collection_activity.user_id AS user_id, collection_activity.category AS category, COUNT(collection_items.id) AS item_count").
		Joins("JOIN collection_items ON collection_items.user_id = collection_activity.user_id AND collection_items.category = collection_activity.category").
		Where("collection_activity.last_active_at IS NOT NULL AND collection_activity.last_active_at < ?", cutoff).
		Group("collection_activity.user_id, collection_activity.category").
		Scan(&owners).Error
	if err != nil {
		return nil, err
	}
	return owners, nil
}
