package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mantongash/cartsync/pkg/enums"
)

// CollectionItem is one entry of a user's cart or favorites collection.
// (user_id, category, product_ref) is unique; duplicate adds are resolved
// in the repository, never by a second row.
type CollectionItem struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_collection_items_owner_ref,priority:1" json:"user_id"`
	Category   enums.Category `gorm:"type:text;not null;uniqueIndex:uq_collection_items_owner_ref,priority:2" json:"category"`
	ProductRef string         `gorm:"not null;uniqueIndex:uq_collection_items_owner_ref,priority:3" json:"product_ref"`
	Quantity   int            `gorm:"not null;default:1" json:"quantity"`
	AddedAt    time.Time      `gorm:"not null" json:"added_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName overrides the default gorm naming.
func (CollectionItem) TableName() string { return "collection_items" }

// CollectionActivity holds the per-user per-category activity timestamp that
// drives rolling server-side expiry. LastActiveAt is nil when the collection
// has never been touched or was purged.
type CollectionActivity struct {
	UserID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"user_id"`
	Category     enums.Category `gorm:"type:text;primaryKey" json:"category"`
	LastActiveAt *time.Time     `json:"last_active_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName overrides the default gorm naming.
func (CollectionActivity) TableName() string { return "collection_activity" }
