package inventory_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"shelfscan/internal/inventory"
	"shelfscan/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != "002_status_index" {
		t.Fatalf("schema version = %q", version)
	}

	// Reopening must not reapply migrations.
	store.Close()
	reopened, err := inventory.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	reopened.Close()
}

func TestAddItemValidates(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	cases := []struct {
		name string
		item inventory.NewItem
	}{
		{"unknown kind", inventory.NewItem{Kind: "rack", Name: "x"}},
		{"missing name", inventory.NewItem{Kind: "hardware"}},
		{"bad status", inventory.NewItem{Kind: "cable", Name: "patch", Status: "lost"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.AddItem(ctx, tc.item); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	item, err := store.AddItem(ctx, inventory.NewItem{Kind: "HW", Name: " Switch ", Codes: []string{"A1", "A1", " "}})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if item.Kind != inventory.KindHardware || item.Name != "Switch" || item.Status != inventory.StatusActive {
		t.Fatalf("unexpected item: %+v", item)
	}
	if len(item.Codes) != 1 || item.Codes[0] != "A1" {
		t.Fatalf("codes = %v", item.Codes)
	}
}

func TestAddItemRejectsDuplicateCode(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.AddItem(t, store, "hardware", "first", "SHARED")

	_, err := store.AddItem(context.Background(), inventory.NewItem{Kind: "hardware", Name: "second", Codes: []string{"SHARED"}})
	if !errors.Is(err, inventory.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
	items, err := store.ListItems(context.Background(), inventory.ListFilter{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("failed insert left %d items", len(items))
	}
}

func TestFindByCodeResolutionOrder(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	rack := testsupport.AddItem(t, store, "hardware", "Rack")
	if _, err := store.AddItem(ctx, inventory.NewItem{Kind: "cable", Name: "Uplink", Serial: "sn-77"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	label, err := inventory.LabelCode(inventory.KindHardware, rack.ID)
	if err != nil {
		t.Fatalf("LabelCode: %v", err)
	}
	// A registered code pointing elsewhere wins over the parsed reference.
	other := testsupport.AddItem(t, store, "location", "Shelf", label)

	tests := []struct {
		name    string
		payload string
		wantID  int64
		wantErr error
	}{
		{"registered code", label, other.ID, nil},
		{"json reference", `{"type":"hardware","id":` + itoa(rack.ID) + `}`, rack.ID, nil},
		{"serial case insensitive", "SN-77", 2, nil},
		{"kind mismatch", `{"type":"cable","id":` + itoa(rack.ID) + `}`, 0, inventory.ErrNotFound},
		{"unknown", "nothing-here", 0, inventory.ErrNotFound},
		{"empty", "   ", 0, inventory.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := store.FindByCode(ctx, tt.payload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got ref=%+v err=%v", tt.wantErr, ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindByCode: %v", err)
			}
			if ref.ID != tt.wantID {
				t.Fatalf("resolved id %d, want %d", ref.ID, tt.wantID)
			}
		})
	}
}

func TestListItemsFilters(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.AddItem(t, store, "hardware", "a")
	b := testsupport.AddItem(t, store, "hardware", "b")
	testsupport.AddItem(t, store, "cable", "c")

	if err := store.SetStatus(ctx, b.ID, inventory.StatusRetired); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := store.SetStatus(ctx, 999, inventory.StatusRetired); !errors.Is(err, inventory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing item, got %v", err)
	}

	hw, err := store.ListItems(ctx, inventory.ListFilter{Kind: "hardware"})
	if err != nil || len(hw) != 2 {
		t.Fatalf("hardware list = %d, err %v", len(hw), err)
	}
	active, err := store.ListItems(ctx, inventory.ListFilter{Kind: "hardware", Status: "active"})
	if err != nil || len(active) != 1 || active[0].Name != "a" {
		t.Fatalf("active hardware = %+v, err %v", active, err)
	}
	limited, err := store.ListItems(ctx, inventory.ListFilter{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("limited list = %d, err %v", len(limited), err)
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["hardware"] != 2 || counts["cable"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestCodeBindings(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	item := testsupport.AddItem(t, store, "cable", "Patch")

	if err := store.AddCode(ctx, item.ID, "PATCH-1"); err != nil {
		t.Fatalf("AddCode: %v", err)
	}
	if err := store.AddCode(ctx, item.ID, "PATCH-1"); !errors.Is(err, inventory.ErrDuplicateCode) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := store.AddCode(ctx, 4242, "X"); !errors.Is(err, inventory.ErrNotFound) {
		t.Fatalf("expected not found for missing item, got %v", err)
	}
	removed, err := store.RemoveCode(ctx, "PATCH-1")
	if err != nil || !removed {
		t.Fatalf("RemoveCode = %v, %v", removed, err)
	}
	if _, err := store.FindByCode(ctx, "PATCH-1"); !errors.Is(err, inventory.ErrNotFound) {
		t.Fatalf("expected not found after removal, got %v", err)
	}
}

func TestHistoryNewestFirstAndPrune(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	item := testsupport.AddItem(t, store, "hardware", "Rack")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []inventory.ScanRecord{
		{EventID: "e1", Payload: "A", Format: "qr", Status: "not_found", ScannedAt: base},
		{EventID: "e2", Payload: "B", Format: "qr", Status: "found", ItemID: &item.ID, ScannedAt: base.Add(500 * time.Millisecond)},
		{EventID: "e3", Payload: "C", Format: "code128", Status: "unavailable", SessionID: "s1", ScannedAt: base.Add(time.Second)},
	}
	for _, rec := range records {
		if err := store.RecordScan(ctx, rec); err != nil {
			t.Fatalf("RecordScan: %v", err)
		}
	}

	history, err := store.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 || history[0].EventID != "e3" || history[2].EventID != "e1" {
		t.Fatalf("unexpected order: %+v", history)
	}
	if history[1].ItemID == nil || *history[1].ItemID != item.ID {
		t.Fatalf("item id not stored: %+v", history[1])
	}
	if history[0].SessionID != "s1" {
		t.Fatalf("session id = %q", history[0].SessionID)
	}

	removed, err := store.PruneHistory(ctx, base.Add(600*time.Millisecond))
	if err != nil {
		t.Fatalf("PruneHistory: %v", err)
	}
	if removed != 2 {
		t.Fatalf("pruned %d rows, want 2", removed)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
