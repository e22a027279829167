package main

import (
	"github.com/spf13/cobra"

	"shelfscan/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var diagnostic bool
	var autoStart string
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the shelfscan daemon in the foreground",
		Hidden:       true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   ctx.resolvedLogLevel(cfg),
				Diagnostic: diagnostic,
				AutoStart:  autoStart,
			})
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")
	cmd.Flags().StringVar(&autoStart, "session", "", "Start a session in this mode (live or single_image) once running")
	return cmd
}
