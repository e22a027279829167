package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"shelfscan/internal/api"
	"shelfscan/internal/config"
	"shelfscan/internal/decoder"
	"shelfscan/internal/deps"
	"shelfscan/internal/preflight"
)

const pollInterval = 200 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	Diagnostic bool
	// AutoStart is passed as --session so the daemon starts scanning on boot.
	AutoStart string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// NewClient returns an API client for the daemon configured in cfg.
func NewClient(cfg *config.Config) *api.Client {
	return api.NewClient(api.BaseURLForBind(cfg.Paths.APIBind), cfg.Paths.APIToken, &http.Client{Timeout: 10 * time.Second})
}

// Launch starts a detached shelfscan daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if opts.Diagnostic {
		args = append(args, "--diagnostic")
	}
	if mode := strings.TrimSpace(opts.AutoStart); mode != "" {
		args = append(args, "--session", mode)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient polls the daemon API until it answers a status request.
func WaitForClient(ctx context.Context, client *api.Client, timeout time.Duration) (*api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err == nil && status.Running {
			return status, nil
		}
		if err == nil {
			err = errors.New("daemon reports not running")
		}
		lastErr = err
		if !sleep(ctx, pollInterval) {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless it already answers.
func EnsureStarted(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client := NewClient(cfg)
	if status, err := client.Status(ctx); err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	} else if err != nil && !errors.Is(err, api.ErrDaemonUnreachable) {
		return StartResult{}, err
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForClient(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: status.PID}, nil
}

// WaitForShutdown waits until the daemon API stops answering.
func WaitForShutdown(ctx context.Context, client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		_, err := client.Status(ctx)
		if errors.Is(err, api.ErrDaemonUnreachable) {
			return nil
		}
		if !sleep(ctx, pollInterval) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// ProcessInfo returns whether the daemon API is reachable and the daemon PID.
func ProcessInfo(ctx context.Context, client *api.Client) (bool, int, error) {
	status, err := client.Status(ctx)
	if err != nil {
		if errors.Is(err, api.ErrDaemonUnreachable) {
			return false, 0, nil
		}
		return true, 0, err
	}
	return true, status.PID, nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// StopAndTerminate sends SIGTERM to the daemon and force-kills it if the API
// still answers after gracePeriod.
func StopAndTerminate(ctx context.Context, cfg *config.Config, pidPath string, gracePeriod time.Duration) (StopResult, error) {
	client := NewClient(cfg)
	alive, pid, err := ProcessInfo(ctx, client)
	if err != nil {
		return StopResult{}, err
	}
	if !alive {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid <= 0 {
		pid, err = readPID(pidPath)
		if err != nil {
			return StopResult{}, err
		}
	}
	if err := signalProcess(pid, syscall.SIGTERM); err != nil {
		return StopResult{PID: pid}, err
	}
	if err := WaitForShutdown(ctx, client, gracePeriod); err == nil {
		return StopResult{PID: pid}, nil
	}

	killed, err := ForceKillProcess(pidPath, cfg.DaemonLockPath(), pid)
	if err != nil {
		return StopResult{PID: pid}, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	return StopResult{PID: killed, ForcedKill: true}, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	if parsed, err := readPID(pidPath); err == nil {
		pid = parsed
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if err := signalProcess(pid, syscall.SIGKILL); err != nil {
		return 0, err
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

func readPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, err
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid daemon pid file %q", pidPath)
	}
	return pid, nil
}

func signalProcess(pid int, sig syscall.Signal) error {
	if pid == os.Getpid() {
		return fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	return nil
}

// StatusSnapshot is what `shelfscan status` renders: the daemon's own report
// when it is reachable, otherwise locally computed checks.
type StatusSnapshot struct {
	Reachable bool
	Daemon    *api.DaemonStatus
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks for
// dependencies and preflight checks.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (StatusSnapshot, error) {
	if cfg == nil {
		return StatusSnapshot{}, errors.New("configuration not available")
	}
	status, err := NewClient(cfg).Status(ctx)
	if err == nil {
		return StatusSnapshot{Reachable: true, Daemon: status}, nil
	}
	if !errors.Is(err, api.ErrDaemonUnreachable) {
		return StatusSnapshot{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	offline := &api.DaemonStatus{
		Dependencies: api.FromDependencies(deps.CheckSystem(cfg)),
		Checks:       api.FromChecks(preflight.RunAll(queryCtx, cfg)),
	}
	if formats, ferr := cfg.EnabledFormats(); ferr == nil {
		dec := decoder.New(decoder.Options{Formats: formats})
		offline.EnabledFormats = dec.Enabled().Strings()
		offline.Dependencies = append(offline.Dependencies, api.FromDependencies(deps.DecoderStatuses(dec.Capabilities()))...)
	}
	return StatusSnapshot{Daemon: offline}, nil
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(statuses []api.DependencyStatus) DependencySummary {
	if len(statuses) == 0 {
		return DependencySummary{Severity: "info", Detail: "No dependency checks configured"}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range statuses {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(statuses) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(statuses), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(statuses))
	}

	return DependencySummary{
		Total:           len(statuses),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
