package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shelfscan/internal/daemonctl"
	"shelfscan/internal/daemonrun"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	var startSession string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the shelfscan daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				cmd.Context(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, startDiagnostic, startSession),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")
	startCmd.Flags().StringVar(&startSession, "session", "", "Start a session in this mode (live or single_image) once running")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the shelfscan daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg := ctx.configValue()
			result, err := daemonctl.StopAndTerminate(cmd.Context(), cfg, daemonrun.PIDFilePath(cfg), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, camera, decoder and inventory status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snapshot.Daemon)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			status := snapshot.Daemon

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if snapshot.Reachable {
				detail := fmt.Sprintf("Running (pid %d)", status.PID)
				if status.StartedAt != "" {
					detail += ", since " + status.StartedAt
				}
				fmt.Fprintln(stdout, renderStatusLine("Shelfscan", statusOK, detail, colorize))
				fmt.Fprintln(stdout, sessionLine(status.Session, colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Shelfscan", statusWarn, "Not running (run `shelfscan start`)", colorize))
			}
			if len(status.EnabledFormats) > 0 {
				fmt.Fprintln(stdout, renderStatusLine("Formats", statusInfo, strings.Join(status.EnabledFormats, ", "), colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range checkLines(status.Checks, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(status.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status as JSON")

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the shelfscan daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg := ctx.configValue()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			stopped, err := daemonctl.StopAndTerminate(cmd.Context(), cfg, daemonrun.PIDFilePath(cfg), 5*time.Second)
			switch {
			case errors.Is(err, daemonctl.ErrDaemonNotRunning):
			case err != nil:
				return err
			default:
				if stopped.ForcedKill && stopped.PID > 0 {
					fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", stopped.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			if _, err := daemonctl.EnsureStarted(cmd.Context(), cfg, exe, daemonLaunchOptions(ctx, restartDiagnostic, ""), 10*time.Second); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, diagnostic bool, session string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		Diagnostic: diagnostic,
		AutoStart:  strings.TrimSpace(session),
	}
}
