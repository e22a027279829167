package daemonctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"shelfscan/internal/api"
	"shelfscan/internal/testsupport"
)

func TestBuildDependencySummary(t *testing.T) {
	tests := []struct {
		name     string
		statuses []api.DependencyStatus
		severity string
		detail   string
	}{
		{name: "empty", severity: "info", detail: "No dependency checks configured"},
		{
			name:     "all available",
			statuses: []api.DependencyStatus{{Name: "FFmpeg", Available: true}, {Name: "decoder:qr", Available: true}},
			severity: "ok",
			detail:   "2/2 available",
		},
		{
			name:     "optional missing",
			statuses: []api.DependencyStatus{{Name: "FFmpeg", Optional: true}, {Name: "decoder:qr", Available: true}},
			severity: "warn",
			detail:   "1/2 available (missing: 0 required, 1 optional)",
		},
		{
			name:     "required missing",
			statuses: []api.DependencyStatus{{Name: "decoder:pdf417"}, {Name: "FFmpeg", Optional: true}},
			severity: "error",
			detail:   "0/2 available (missing: 1 required, 1 optional)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildDependencySummary(tt.statuses)
			if got.Severity != tt.severity || got.Detail != tt.detail {
				t.Fatalf("got %+v, want severity %q detail %q", got, tt.severity, tt.detail)
			}
		})
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:1"

	snap, err := BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Reachable || snap.Daemon == nil || snap.Daemon.Running {
		t.Fatalf("expected offline snapshot, got %+v", snap)
	}
	if len(snap.Daemon.Checks) == 0 || len(snap.Daemon.EnabledFormats) == 0 {
		t.Fatalf("offline snapshot missing local checks: %+v", snap.Daemon)
	}
	var decoders int
	for _, dep := range snap.Daemon.Dependencies {
		if strings.HasPrefix(dep.Name, "decoder:") {
			decoders++
		}
	}
	if decoders == 0 {
		t.Fatal("expected decoder capabilities in offline snapshot")
	}
}

func statusServer(t *testing.T, status api.DaemonStatus) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}))
	t.Cleanup(server.Close)
	return strings.TrimPrefix(server.URL, "http://")
}

func TestBuildStatusSnapshotOnline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = statusServer(t, api.DaemonStatus{Running: true, PID: 4242})

	snap, err := BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if !snap.Reachable || snap.Daemon.PID != 4242 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	alive, pid, err := ProcessInfo(context.Background(), NewClient(cfg))
	if err != nil || !alive || pid != 4242 {
		t.Fatalf("ProcessInfo = %v %d %v", alive, pid, err)
	}
}

func TestEnsureStartedAlreadyRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = statusServer(t, api.DaemonStatus{Running: true, PID: 7})

	result, err := EnsureStarted(context.Background(), cfg, "/nonexistent/shelfscan", LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != StartStateAlreadyRunning || result.Launched || result.PID != 7 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:1"
	_, err := StopAndTerminate(context.Background(), cfg, filepath.Join(t.TempDir(), "shelfscan.pid"), time.Second)
	if err != ErrDaemonNotRunning {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "shelfscan.pid")
	testsupport.WriteFile(t, pidPath, []byte(strconv.Itoa(os.Getpid())))
	if _, err := ForceKillProcess(pidPath, "", os.Getpid()); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pid")
	bad := filepath.Join(dir, "bad.pid")
	testsupport.WriteFile(t, good, []byte("1234\n"))
	testsupport.WriteFile(t, bad, []byte("nope"))

	if pid, err := readPID(good); err != nil || pid != 1234 {
		t.Fatalf("readPID(good) = %d, %v", pid, err)
	}
	if _, err := readPID(bad); err == nil {
		t.Fatal("expected error for malformed pid file")
	}
	if _, err := readPID(filepath.Join(dir, "missing.pid")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
