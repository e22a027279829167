package testsupport

import (
	"context"
	"testing"

	"shelfscan/internal/config"
	"shelfscan/internal/inventory"
)

// MustOpenStore opens an inventory.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *inventory.Store {
	t.Helper()

	store, err := inventory.Open(cfg)
	if err != nil {
		t.Fatalf("inventory.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddItem inserts an item with the given label codes.
func AddItem(t testing.TB, store *inventory.Store, kind, name string, codes ...string) *inventory.Item {
	t.Helper()

	item, err := store.AddItem(context.Background(), inventory.NewItem{Kind: kind, Name: name, Codes: codes})
	if err != nil {
		t.Fatalf("store.AddItem: %v", err)
	}
	return item
}
