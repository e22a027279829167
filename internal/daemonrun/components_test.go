package daemonrun

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"shelfscan/internal/barcode"
	"shelfscan/internal/camera"
	"shelfscan/internal/inventory"
	"shelfscan/internal/testsupport"
)

func TestBuildSQLiteBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()

	if c.Store == nil {
		t.Fatal("sqlite backend should expose the store")
	}
	if _, ok := c.Repository.(*inventory.Store); !ok {
		t.Fatalf("repository = %T, want *inventory.Store", c.Repository)
	}
	if _, ok := c.Source.(*camera.ReplaySource); !ok {
		t.Fatalf("source = %T, want replay", c.Source)
	}
	if c.Session == nil || c.Decoder == nil || c.Lookup == nil {
		t.Fatal("components incomplete")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBuildHTTPBackendOpensHistoryStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithHTTPInventory(server.URL))
	cfg.Inventory.RecordHistory = true
	c, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()
	if _, ok := c.Repository.(*inventory.HTTPRepository); !ok {
		t.Fatalf("repository = %T, want http", c.Repository)
	}
	if c.Store == nil {
		t.Fatal("history store should be opened when recording history")
	}

	results := c.Session.ResolveCodes(context.Background(), []barcode.DecodedCode{{Payload: "REMOTE-1", Format: barcode.FormatQR}})
	if len(results) != 1 || results[0].Status != "not_found" {
		t.Fatalf("unexpected results: %+v", results)
	}
	history, err := c.Store.History(context.Background(), 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Payload != "REMOTE-1" {
		t.Fatalf("history not recorded: %+v", history)
	}
}

func TestBuildHTTPBackendWithoutHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHTTPInventory("http://127.0.0.1:1"))
	cfg.Inventory.RecordHistory = false
	c, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()
	if c.Store != nil {
		t.Fatal("no store expected for remote inventory without history")
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "shelfscan-1.log")
	second := filepath.Join(dir, "shelfscan-2.log")
	testsupport.WriteFile(t, first, []byte("one"))
	testsupport.WriteFile(t, second, []byte("two"))

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "shelfscan.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "two" {
		t.Fatalf("pointer resolves to %q, want latest log", data)
	}
}
