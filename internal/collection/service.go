package collection

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mantongash/cartsync/pkg/db/models"
	"github.com/mantongash/cartsync/pkg/enums"
	pkgerrors "github.com/mantongash/cartsync/pkg/errors"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams carries the dependencies for the collection service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Retention time.Duration
	Now       func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	retention time.Duration
	now       func() time.Time
}

// NewService builds the authoritative collection service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collection repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner required")
	}
	if params.Retention <= 0 {
		params.Retention = DefaultRetention
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		retention: params.Retention,
		now:       params.Now,
	}, nil
}

// List returns the live entries for (user, category). Entries past the
// retention window are dropped from the response and compacted away in the
// same call, so an idle deployment without the sweeper still converges.
func (s *service) List(ctx context.Context, userID uuid.UUID, category enums.Category) (*CollectionDTO, error) {
	if err := validateOwner(userID, category); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	cutoff := now.Add(-s.retention)

	rows, err := s.repo.ListItems(ctx, userID, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list collection items")
	}

	live := make([]ItemDTO, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		if row.AddedAt.Before(cutoff) {
			dropped++
			continue
		}
		live = append(live, toItemDTO(category, row))
	}
	if dropped > 0 {
		if err := s.repo.DeleteItemsBefore(ctx, userID, category, cutoff); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compact expired collection items")
		}
	}

	dto := &CollectionDTO{Items: live}
	activity, err := s.repo.GetActivity(ctx, userID, category)
	switch {
	case err == nil:
		if activity.LastActiveAt != nil {
			expiry := activity.LastActiveAt.Add(s.retention).UTC()
			dto.Expiry = &expiry
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No activity row yet: no expiry to report.
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection activity")
	}
	return dto, nil
}

// Add locates or creates the entry for productRef. A duplicate cart add sums
// quantities; a duplicate favorite add only refreshes the entry timestamp.
func (s *service) Add(ctx context.Context, userID uuid.UUID, category enums.Category, productRef string, quantity int) error {
	if err := validateOwner(userID, category); err != nil {
		return err
	}
	if productRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product ref is required")
	}
	if quantity < 1 {
		quantity = 1
	}

	now := s.now().UTC()
	return s.runTx(ctx, func(repo Repository) error {
		existing, err := repo.FindItem(ctx, userID, category, productRef)
		switch {
		case err == nil:
			if category.UsesQuantity() {
				existing.Quantity += quantity
			}
			existing.AddedAt = now
			if err := repo.SaveItem(ctx, existing); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			item := &models.CollectionItem{
				UserID:     userID,
				Category:   category,
				ProductRef: productRef,
				Quantity:   quantity,
				AddedAt:    now,
			}
			if !category.UsesQuantity() {
				item.Quantity = 1
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				return err
			}
		default:
			return err
		}
		return repo.TouchActivity(ctx, userID, category, now)
	})
}

// Remove deletes a single entry by productRef. Removing an absent ref is a
// no-op that still counts as activity.
func (s *service) Remove(ctx context.Context, userID uuid.UUID, category enums.Category, productRef string) error {
	if err := validateOwner(userID, category); err != nil {
		return err
	}
	if productRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product ref is required")
	}

	now := s.now().UTC()
	return s.runTx(ctx, func(repo Repository) error {
		if err := repo.DeleteItem(ctx, userID, category, productRef); err != nil {
			return err
		}
		return repo.TouchActivity(ctx, userID, category, now)
	})
}

// UpdateQuantity sets the quantity of an existing cart entry. A non-positive
// quantity removes the entry instead.
func (s *service) UpdateQuantity(ctx context.Context, userID uuid.UUID, category enums.Category, productRef string, quantity int) error {
	if err := validateOwner(userID, category); err != nil {
		return err
	}
	if !category.UsesQuantity() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity updates only apply to the cart")
	}
	if productRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product ref is required")
	}
	if quantity <= 0 {
		return s.Remove(ctx, userID, category, productRef)
	}

	now := s.now().UTC()
	return s.runTx(ctx, func(repo Repository) error {
		existing, err := repo.FindItem(ctx, userID, category, productRef)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "collection item not found")
			}
			return err
		}
		existing.Quantity = quantity
		existing.AddedAt = now
		if err := repo.SaveItem(ctx, existing); err != nil {
			return err
		}
		return repo.TouchActivity(ctx, userID, category, now)
	})
}

// Clear deletes every entry for (user, category) and nulls the activity
// timestamp, so the collection no longer counts toward sweeper scans.
func (s *service) Clear(ctx context.Context, userID uuid.UUID, category enums.Category) error {
	if err := validateOwner(userID, category); err != nil {
		return err
	}
	return s.runTx(ctx, func(repo Repository) error {
		if err := repo.DeleteAllItems(ctx, userID, category); err != nil {
			return err
		}
		return repo.NullActivity(ctx, userID, category)
	})
}

func (s *service) runTx(ctx context.Context, fn func(repo Repository) error) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx))
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist collection mutation")
	}
	return nil
}

func validateOwner(userID uuid.UUID, category enums.Category) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown collection category")
	}
	return nil
}

func toItemDTO(category enums.Category, row models.CollectionItem) ItemDTO {
	dto := ItemDTO{
		ProductRef: row.ProductRef,
		AddedAt:    row.AddedAt.UTC(),
	}
	if category.UsesQuantity() {
		dto.Quantity = row.Quantity
	}
	return dto
}
