package collection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mantongash/cartsync/pkg/db/models"
	"github.com/mantongash/cartsync/pkg/enums"
	"gorm.io/gorm"
)

// DefaultRetention is how long a collection survives without activity on the
// server. Entries older than this are also dropped individually at read time.
const DefaultRetention = 7 * 24 * time.Hour

// ItemDTO is the wire shape of one collection entry.
type ItemDTO struct {
	ProductRef string    `json:"product_ref"`
	Quantity   int       `json:"quantity,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

// CollectionDTO is the GET response body: the live entries plus the moment
// the collection will expire if nothing else touches it. Expiry is nil for
// collections with no recorded activity.
type CollectionDTO struct {
	Items  []ItemDTO  `json:"items"`
	Expiry *time.Time `json:"expiry"`
}

// ExpiredOwner identifies one (user, category) pair the sweeper should purge.
type ExpiredOwner struct {
	UserID    uuid.UUID
	Category  enums.Category
	ItemCount int
}

// Repository is the persistence surface for collection rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListItems(ctx context.Context, userID uuid.UUID, category enums.Category) ([]models.CollectionItem, error)
	FindItem(ctx context.Context, userID uuid.UUID, category enums.Category, productRef string) (*models.CollectionItem, error)
	CreateItem(ctx context.Context, item *models.CollectionItem) error
	SaveItem(ctx context.Context, item *models.CollectionItem) error
	DeleteItem(ctx context.Context, userID uuid.UUID, category enums.Category, productRef string) error
	DeleteItemsBefore(ctx context.Context, userID uuid.UUID, category enums.Category, cutoff time.Time) error
	DeleteAllItems(ctx context.Context, userID uuid.UUID, category enums.Category) error
	GetActivity(ctx context.Context, userID uuid.UUID, category enums.Category) (*models.CollectionActivity, error)
	TouchActivity(ctx context.Context, userID uuid.UUID, category enums.Category, at time.Time) error
	NullActivity(ctx context.Context, userID uuid.UUID, category enums.Category) error
	FindExpiredOwners(ctx context.Context, cutoff time.Time) ([]ExpiredOwner, error)
}

// Service exposes the authoritative collection operations backing the API.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, category enums.Category) (*CollectionDTO, error)
	Add(ctx context.Context, userID uuid.UUID, category enums.Category, productRef string, quantity int) error
	Remove(ctx context.Context, userID uuid.UUID, category enums.Category, productRef string) error
	UpdateQuantity(ctx context.Context, userID uuid.UUID, category enums.Category, productRef string, quantity int) error
	Clear(ctx context.Context, userID uuid.UUID, category enums.Category) error
}
