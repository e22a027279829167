package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"shelfscan/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		debug  bool
		filter logs.Filter
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Paths.LogDir
			if debug {
				dir = filepath.Join(dir, "debug")
			}
			path := filepath.Join(dir, "shelfscan.log")

			stdout := cmd.OutOrStdout()
			opts := logs.TailOptions{Offset: -1, Limit: lines, Filter: filter}
			for {
				result, err := logs.Tail(cmd.Context(), path, opts)
				if err != nil {
					if errors.Is(err, cmd.Context().Err()) {
						return nil
					}
					return err
				}
				for _, entry := range result.Entries {
					fmt.Fprintln(stdout, entry.String())
				}
				if !follow {
					return nil
				}
				opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: time.Minute, Filter: filter}
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 40, "Number of entries to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	cmd.Flags().BoolVar(&debug, "debug", false, "Read the diagnostic log instead of the main log")
	cmd.Flags().StringVar(&filter.SessionID, "session", "", "Only entries for this session id")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.Contains, "grep", "", "Only entries containing this text")
	return cmd
}
