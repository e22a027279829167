package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shelfscan/internal/api"
	"shelfscan/internal/decoder"
	"shelfscan/internal/deps"
)

func newCapabilitiesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "List barcode families and whether each can be decoded",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			formats, err := cfg.EnabledFormats()
			if err != nil {
				return err
			}
			dec := decoder.New(decoder.Options{Formats: formats, Logger: ctx.localLogger()})
			statuses := api.FromDependencies(deps.DecoderStatuses(dec.Capabilities()))
			if asJSON {
				return writeJSON(cmd, statuses)
			}

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "available"
				switch {
				case !status.Available && status.Optional:
					state = "disabled"
				case !status.Available:
					state = "missing"
				}
				rows = append(rows, []string{
					strings.TrimPrefix(status.Name, "decoder:"),
					strings.Join(status.Formats, ", "),
					state,
					status.Detail,
				})
			}
			caption := fmt.Sprintf("enabled: %s", strings.Join(dec.Enabled().Strings(), ", "))
			fmt.Fprint(cmd.OutOrStdout(), renderTable(cols("Family", "Formats", "State", "Detail"), rows, caption))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print capabilities as JSON")
	return cmd
}
