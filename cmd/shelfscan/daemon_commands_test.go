package main

import (
	"testing"
)

func offlineEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := setupCLITestEnv(t)
	env.cfg.Paths.APIBind = "127.0.0.1:1"
	writeTestConfig(t, env.configPath, env.cfg)
	return env
}

func TestStatusWhenDaemonOffline(t *testing.T) {
	env := offlineEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "Not running")
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "decoder:pdf417")
}

func TestStopWhenDaemonOffline(t *testing.T) {
	env := offlineEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestLatestRequiresDaemon(t *testing.T) {
	env := offlineEnv(t)

	if _, _, err := runCLI(t, []string{"latest"}, env.configPath); err == nil {
		t.Fatal("expected latest to fail without a daemon")
	}
}
