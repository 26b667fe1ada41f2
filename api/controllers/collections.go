package controllers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mantongash/cartsync/api/middleware"
	"github.com/mantongash/cartsync/api/responses"
	"github.com/mantongash/cartsync/api/validators"
	"github.com/mantongash/cartsync/internal/collection"
	"github.com/mantongash/cartsync/pkg/enums"
	pkgerrors "github.com/mantongash/cartsync/pkg/errors"
	"github.com/mantongash/cartsync/pkg/logger"
)

type addItemPayload struct {
	ProductRef string `json:"product_ref" validate:"required"`
	Quantity   int    `json:"quantity" validate:"omitempty,min=1"`
}

type updateItemPayload struct {
	ProductRef string `json:"product_ref" validate:"required"`
	Quantity   int    `json:"quantity"`
}

// CollectionGet returns the live collection plus its expiry horizon.
func CollectionGet(svc collection.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, category, err := requestScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		dto, err := svc.List(ctx, userID, category)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// CollectionAdd adds or merges one item.
func CollectionAdd(svc collection.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, category, err := requestScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload addItemPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Add(ctx, userID, category, payload.ProductRef, payload.Quantity); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "added"})
	}
}

// CollectionRemove deletes one item by product ref.
func CollectionRemove(svc collection.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, category, err := requestScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		productRef, err := url.PathUnescape(chi.URLParam(r, "productRef"))
		if err != nil || productRef == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product ref is required"))
			return
		}

		if err := svc.Remove(ctx, userID, category, productRef); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// CollectionUpdate sets the quantity of a cart entry.
func CollectionUpdate(svc collection.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, category, err := requestScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload updateItemPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.UpdateQuantity(ctx, userID, category, payload.ProductRef, payload.Quantity); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// CollectionClear empties the whole collection.
func CollectionClear(svc collection.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, category, err := requestScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Clear(ctx, userID, category); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

func requestScope(r *http.Request) (uuid.UUID, enums.Category, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	category, err := enums.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown collection category")
	}
	return userID, category, nil
}
