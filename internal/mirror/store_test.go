package mirror

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mantongash/cartsync/pkg/enums"
	pkgredis "github.com/mantongash/cartsync/pkg/redis"
	"github.com/mantongash/cartsync/pkg/types"
)

type fakeKV struct {
	values map[string]string
	sets   int
	dels   []string
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.sets++
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		f.dels = append(f.dels, k)
		delete(f.values, k)
	}
	return nil
}

func (f *fakeKV) MirrorKey(identity, category string) string {
	return "cs:mirror:" + identity + ":" + category
}

func TestRedisStoreRoundTrip(t *testing.T) {
	kv := newFakeKV()
	store, err := NewRedisStore(kv, 0)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}

	guest := types.Guest("abc")
	items := []types.Item{{ProductRef: "p1", Quantity: 2}}
	if err := store.Save(context.Background(), guest, enums.CategoryCart, items); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := store.Load(context.Background(), guest, enums.CategoryCart)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if len(snap.Items) != 1 || snap.Items[0].ProductRef != "p1" || snap.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", snap.Items)
	}
	if snap.Identity != guest {
		t.Fatalf("unexpected identity %+v", snap.Identity)
	}
}

func TestRedisStoreEmptySaveIsMeaningful(t *testing.T) {
	kv := newFakeKV()
	store, _ := NewRedisStore(kv, 0)
	guest := types.Guest("abc")

	if err := store.Save(context.Background(), guest, enums.CategoryCart, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := store.Load(context.Background(), guest, enums.CategoryCart)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap == nil {
		t.Fatal("an explicitly saved empty snapshot must load as present")
	}
	if len(snap.Items) != 0 {
		t.Fatalf("expected empty items, got %+v", snap.Items)
	}
}

func TestRedisStoreIdentityNamespacesDoNotLeak(t *testing.T) {
	kv := newFakeKV()
	store, _ := NewRedisStore(kv, 0)

	guest := types.Guest("42")
	user := types.User("42")
	if err := store.Save(context.Background(), guest, enums.CategoryCart, []types.Item{{ProductRef: "p1", Quantity: 1}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := store.Load(context.Background(), user, enums.CategoryCart)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap != nil {
		t.Fatal("user identity must never read the guest snapshot")
	}
}

func TestRedisStoreDropsStaleSnapshot(t *testing.T) {
	kv := newFakeKV()
	store, _ := NewRedisStore(kv, 30*24*time.Hour)
	guest := types.Guest("abc")

	past := time.Now().Add(-31 * 24 * time.Hour)
	payload, _ := json.Marshal(persistedSnapshot{
		Items:     []types.Item{{ProductRef: "p1", Quantity: 1}},
		Timestamp: past.UnixMilli(),
		Identity:  guest.Namespace(),
	})
	kv.values[kv.MirrorKey(guest.Namespace(), "cart")] = string(payload)

	snap, err := store.Load(context.Background(), guest, enums.CategoryCart)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap != nil {
		t.Fatal("snapshots past the max age must behave as absent")
	}
}

func TestRedisStoreMalformedPayloadBehavesAsAbsent(t *testing.T) {
	kv := newFakeKV()
	store, _ := NewRedisStore(kv, 0)
	guest := types.Guest("abc")

	kv.values[kv.MirrorKey(guest.Namespace(), "cart")] = "{not json"

	snap, err := store.Load(context.Background(), guest, enums.CategoryCart)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap != nil {
		t.Fatal("malformed payloads must behave as absent")
	}
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore(0)
	guest := types.Guest("abc")

	if err := store.Save(context.Background(), guest, enums.CategoryFavorites, []types.Item{{ProductRef: "p3"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Clear(context.Background(), guest, enums.CategoryFavorites); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	snap, err := store.Load(context.Background(), guest, enums.CategoryFavorites)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap != nil {
		t.Fatal("cleared snapshot should be absent")
	}
}
