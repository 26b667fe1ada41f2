package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mantongash/cartsync/internal/collection"
	"github.com/mantongash/cartsync/pkg/config"
	"github.com/mantongash/cartsync/pkg/enums"
	pkgerrors "github.com/mantongash/cartsync/pkg/errors"
	"github.com/mantongash/cartsync/pkg/types"
)

func newTestRemote(t *testing.T, handler http.Handler) (*HTTPRemote, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	remote, err := NewHTTPRemote(config.SyncConfig{
		ServerBaseURL:  server.URL,
		RequestTimeout: 5 * time.Second,
	}, StaticToken("test-token"))
	if err != nil {
		t.Fatalf("NewHTTPRemote: %v", err)
	}
	return remote, server
}

func TestHTTPRemoteListDecodesEnvelope(t *testing.T) {
	added := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/cart" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		_ = json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: collection.CollectionDTO{
			Items: []collection.ItemDTO{{ProductRef: "sku-1", Quantity: 3, AddedAt: added}},
		}})
	})
	remote, _ := newTestRemote(t, handler)

	items, err := remote.List(context.Background(), enums.CategoryCart)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ProductRef != "sku-1" || items[0].Quantity != 3 {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestHTTPRemoteMutationPaths(t *testing.T) {
	type seen struct {
		method string
		path   string
		body   map[string]any
	}
	var calls []seen
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := seen{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&entry.body)
		}
		calls = append(calls, entry)
		_ = json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: map[string]any{"ok": true}})
	})
	remote, _ := newTestRemote(t, handler)
	ctx := context.Background()

	if err := remote.Add(ctx, enums.CategoryCart, types.Item{ProductRef: "sku-1", Quantity: 2}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := remote.Update(ctx, enums.CategoryCart, "sku-1", 5); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := remote.Remove(ctx, enums.CategoryFavorites, "sku 2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := remote.Clear(ctx, enums.CategoryCart); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	expected := []seen{
		{method: http.MethodPost, path: "/api/v1/cart/add"},
		{method: http.MethodPut, path: "/api/v1/cart/update"},
		{method: http.MethodDelete, path: "/api/v1/favorites/remove/sku 2"},
		{method: http.MethodDelete, path: "/api/v1/cart/clear"},
	}
	if len(calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d", len(expected), len(calls))
	}
	for i, want := range expected {
		if calls[i].method != want.method || calls[i].path != want.path {
			t.Fatalf("call %d: want %s %s, got %s %s", i, want.method, want.path, calls[i].method, calls[i].path)
		}
	}
	if qty, ok := calls[0].body["quantity"].(float64); !ok || qty != 2 {
		t.Fatalf("add body missing quantity: %+v", calls[0].body)
	}
	if qty, ok := calls[1].body["quantity"].(float64); !ok || qty != 5 {
		t.Fatalf("update body missing quantity: %+v", calls[1].body)
	}
}

func TestHTTPRemoteSurfacesServerErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(types.ErrorEnvelope{Error: types.APIError{
			Code:    "dependency_error",
			Message: "database unavailable",
		}})
	})
	remote, _ := newTestRemote(t, handler)

	_, err := remote.List(context.Background(), enums.CategoryCart)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewHTTPRemoteValidatesConfig(t *testing.T) {
	if _, err := NewHTTPRemote(config.SyncConfig{}, StaticToken("x")); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing base url, got %v", err)
	}
	if _, err := NewHTTPRemote(config.SyncConfig{ServerBaseURL: "http://localhost:8080"}, nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing token source, got %v", err)
	}
}
