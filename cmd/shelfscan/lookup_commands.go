package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shelfscan/internal/api"
	"shelfscan/internal/barcode"
	"shelfscan/internal/inventory"
	"shelfscan/internal/lookup"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "lookup <code>",
		Short: "Resolve a code against the configured inventory backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			payload := inventory.NormalizePayload(args[0])
			if payload == "" {
				return errors.New("code is empty")
			}
			repo, closer, err := inventory.NewRepository(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			adapter := lookup.New(repo, lookup.Options{Timeout: cfg.LookupTimeout(), Logger: ctx.localLogger()})
			ev := barcode.ScanEvent{ID: uuid.NewString(), Payload: payload, EmittedAt: time.Now()}
			res, lookupErr := adapter.Resolve(cmd.Context(), ev)

			out := api.ItemResponse{Code: payload, Status: string(res.Status), Item: api.FromItemRef(res.Event.MatchedItem)}
			if asJSON {
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
				return lookupErr
			}
			if lookupErr != nil {
				return lookupErr
			}
			stdout := cmd.OutOrStdout()
			switch res.Status {
			case lookup.StatusFound:
				fmt.Fprintf(stdout, "%s: %s\n", payload, itemLabel(out.Item))
			default:
				fmt.Fprintf(stdout, "%s: not found\n", payload)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scan history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *inventory.Store) error {
				records, err := store.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				entries := api.FromScanRecords(records)
				if asJSON {
					return writeJSON(cmd, api.HistoryResponse{Entries: entries})
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scans recorded")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					item := ""
					if rec.ItemID != nil {
						item = "#" + strconv.FormatInt(*rec.ItemID, 10)
					}
					rows = append(rows, []string{
						rec.ScannedAt.Local().Format("2006-01-02 15:04:05"),
						rec.Payload,
						string(rec.Format),
						rec.Status,
						item,
						shortID(rec.SessionID),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(cols("Scanned", "Code", "Format", "Lookup", "Item", "Session"), rows, ""))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print history as JSON")
	return cmd
}
