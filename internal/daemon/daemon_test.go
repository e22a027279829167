package daemon_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"shelfscan/internal/api"
	"shelfscan/internal/config"
	"shelfscan/internal/daemon"
	"shelfscan/internal/decoder"
	"shelfscan/internal/lookup"
	"shelfscan/internal/session"
	"shelfscan/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	dec := decoder.New(decoder.Options{})
	sess, err := session.New(session.Options{
		Decoder:  dec,
		Lookup:   lookup.New(store, lookup.Options{History: store}),
		LockPath: cfg.DeviceLockPath,
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	d, err := daemon.New(cfg, daemon.Dependencies{Session: sess, Decoder: dec, Repository: store, Store: store}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestNewRequiresSessionAndDecoder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, daemon.Dependencies{}, nil); err == nil {
		t.Fatal("expected error without session")
	}
	if _, err := daemon.New(nil, daemon.Dependencies{}, nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.APIAddress == "" {
		t.Fatalf("unexpected status after start: %+v", status)
	}
	if status.StartedAt.IsZero() || len(status.Checks) == 0 {
		t.Fatalf("expected start time and preflight results, got %+v", status)
	}

	client := api.NewClient(api.BaseURLForBind(status.APIAddress), "", &http.Client{Timeout: 5 * time.Second})
	remote, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("client.Status: %v", err)
	}
	if !remote.Running || remote.LockFilePath != cfg.DaemonLockPath() {
		t.Fatalf("unexpected remote status: %+v", remote)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("daemon still running after Stop")
	}
	if d.APIAddress() != "" {
		t.Fatal("api address still reported after Stop")
	}
}

func TestSecondDaemonFailsOnLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second := newDaemon(t, cfg)
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second daemon to fail on the lock")
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after first stopped: %v", err)
	}
}

func TestStopStopsActiveSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := d.StartSession(ctx, api.StartSessionRequest{Mode: "single_image"}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if !d.Status(ctx).SessionActive {
		t.Fatal("expected active session")
	}
	d.Stop()
	if d.Status(ctx).SessionActive {
		t.Fatal("session survived daemon stop")
	}
}

func TestStartSessionOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	cooldown := 1.5
	settings, err := d.StartSession(context.Background(), api.StartSessionRequest{
		Mode:            "single_image",
		FrameSkip:       2,
		StreakThreshold: 4,
		CooldownSeconds: &cooldown,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if settings.FrameSkip != 2 || settings.StreakThreshold != 4 || settings.Cooldown != 1500*time.Millisecond {
		t.Fatalf("overrides not applied: %+v", settings)
	}

	negative := -1.0
	if _, err := d.StartSession(context.Background(), api.StartSessionRequest{Mode: "live", CooldownSeconds: &negative}); err == nil {
		t.Fatal("expected negative cooldown to be rejected")
	}
}
