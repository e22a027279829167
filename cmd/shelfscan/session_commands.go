package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"shelfscan/internal/api"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Control the daemon's scan session",
	}

	var (
		mode      string
		frameSkip int
		threshold int
		cooldown  float64
	)
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start (or restart) a scan session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			req := api.StartSessionRequest{Mode: mode, FrameSkip: frameSkip, StreakThreshold: threshold}
			if cmd.Flags().Changed("cooldown") {
				req.CooldownSeconds = &cooldown
			}
			resp, err := client.StartSession(cmd.Context(), req)
			if err != nil {
				return err
			}
			settings := resp.Session.Settings
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s started in %s mode (frame skip %d, streak %d, cooldown %.1fs)\n",
				shortID(resp.Session.ID), resp.Session.Mode, settings.FrameSkip, settings.StreakThreshold, settings.CooldownSeconds)
			return nil
		},
	}
	startCmd.Flags().StringVar(&mode, "mode", "live", "Session mode: live or single_image")
	startCmd.Flags().IntVar(&frameSkip, "frame-skip", 0, "Decode one frame in N (0 keeps the configured value)")
	startCmd.Flags().IntVar(&threshold, "threshold", 0, "Consecutive sightings before a scan is reported (0 keeps the configured value)")
	startCmd.Flags().Float64Var(&cooldown, "cooldown", 0, "Seconds before the same code is reported again")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the scan session and release the camera",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if _, err := client.StopSession(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session stopped")
			return nil
		},
	}

	sessionCmd.AddCommand(startCmd, stopCmd)
	return sessionCmd
}

func newLatestCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON    bool
		framePath string
		watch     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the latest scan result",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			var lastUpdate string
			for {
				latest, err := client.Latest(cmd.Context())
				if err != nil {
					return err
				}
				if latest.UpdatedAt != lastUpdate {
					lastUpdate = latest.UpdatedAt
					if asJSON && watch > 0 {
						if err := writeJSONLine(stdout, latest); err != nil {
							return err
						}
					} else if asJSON {
						if err := writeJSON(cmd, latest); err != nil {
							return err
						}
					} else {
						renderLatest(stdout, latest, colorize)
						if watch > 0 {
							fmt.Fprintln(stdout)
						}
					}
				}
				if watch <= 0 {
					break
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(watch):
				}
			}

			if framePath != "" {
				data, err := client.LatestFrame(cmd.Context())
				if err != nil {
					return err
				}
				if err := os.WriteFile(framePath, data, 0o644); err != nil {
					return fmt.Errorf("write frame: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote annotated frame to %s\n", framePath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().StringVar(&framePath, "frame", "", "Save the annotated frame as PNG to this path")
	cmd.Flags().DurationVar(&watch, "watch", 0, "Poll at this interval and print every change")
	return cmd
}
