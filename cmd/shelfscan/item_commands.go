package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shelfscan/internal/inventory"
)

func newItemCommand(ctx *commandContext) *cobra.Command {
	itemCmd := &cobra.Command{
		Use:   "item",
		Short: "Manage the local inventory database",
	}
	itemCmd.AddCommand(
		newItemAddCommand(ctx),
		newItemListCommand(ctx),
		newItemSearchCommand(ctx),
		newItemShowCommand(ctx),
		newItemStatusCommand(ctx),
		newItemCodeCommand(ctx),
		newItemImportCommand(ctx),
		newItemExportCommand(ctx),
	)
	return itemCmd
}

func withStore(ctx *commandContext, fn func(*inventory.Store) error) error {
	store, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newItemAddCommand(ctx *commandContext) *cobra.Command {
	var (
		in        inventory.NewItem
		withLabel bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *inventory.Store) error {
				item, err := store.AddItem(cmd.Context(), in)
				if err != nil {
					return err
				}
				if withLabel {
					label, err := inventory.LabelCode(item.Kind, item.ID)
					if err != nil {
						return err
					}
					if err := store.AddCode(cmd.Context(), item.ID, label); err != nil {
						return err
					}
					item.Codes = append(item.Codes, label)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added item #%d %s (%s)\n", item.ID, item.Name, item.Kind)
				if len(item.Codes) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Codes: %s\n", strings.Join(item.Codes, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Kind, "kind", "", "Item kind (hardware, cable or location)")
	cmd.Flags().StringVar(&in.Name, "name", "", "Item name")
	cmd.Flags().StringVar(&in.Serial, "serial", "", "Serial number")
	cmd.Flags().StringVar(&in.Location, "location", "", "Storage location")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "Free-form notes")
	cmd.Flags().StringSliceVar(&in.Codes, "code", nil, "Barcode payload bound to the item (repeatable)")
	cmd.Flags().BoolVar(&withLabel, "label", false, "Also bind the generated label code (e.g. HW000042)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newItemListCommand(ctx *commandContext) *cobra.Command {
	var (
		filter inventory.ListFilter
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *inventory.Store) error {
				items, err := store.ListItems(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Inventory is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Kind,
						item.Name,
						item.Location,
						item.Status,
						strings.Join(item.Codes, ", "),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					append([]column{num("ID")}, cols("Kind", "Name", "Location", "Status", "Codes")...),
					rows,
					formatCount(len(items), "item"),
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.Kind, "kind", "", "Only list this kind")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only list this status")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of items")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print items as JSON")
	return cmd
}

func newItemSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		filter inventory.ListFilter
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <text>...",
		Short: "Find items by name, serial, location or notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *inventory.Store) error {
				hits, err := store.Search(cmd.Context(), strings.Join(args, " "), filter, limit)
				if err != nil {
					return err
				}
				if asJSON {
					items := make([]*inventory.Item, 0, len(hits))
					for _, hit := range hits {
						items = append(items, hit.Item)
					}
					return writeJSON(cmd, items)
				}
				if len(hits) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching items")
					return nil
				}
				rows := make([][]string, 0, len(hits))
				for _, hit := range hits {
					rows = append(rows, []string{
						strconv.FormatInt(hit.Item.ID, 10),
						hit.Item.Kind,
						hit.Item.Name,
						hit.Item.Location,
						strconv.FormatFloat(hit.Score, 'f', 2, 64),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]column{num("ID"), {title: "Kind"}, {title: "Name"}, {title: "Location"}, num("Score")},
					rows,
					"",
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.Kind, "kind", "", "Only search this kind")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only search this status")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print matching items as JSON")
	return cmd
}

// findItem resolves an item id or any payload the scanner would resolve. An
// all-digit ref that names no item id is tried as a code, since EAN and UPC
// payloads are all digits too.
func findItem(ctx context.Context, store *inventory.Store, ref string) (*inventory.Item, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64); err == nil {
		item, err := store.GetItem(ctx, id)
		if !errors.Is(err, inventory.ErrNotFound) {
			return item, err
		}
	}
	found, err := store.FindByCode(ctx, ref)
	if err != nil {
		return nil, err
	}
	return store.GetItem(ctx, found.ID)
}

func newItemShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id|code>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *inventory.Store) error {
				item, err := findItem(cmd.Context(), store, args[0])
				if errors.Is(err, inventory.ErrNotFound) {
					return fmt.Errorf("no item matches %q", args[0])
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, item)
				}
				renderItem(cmd.OutOrStdout(), item)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the item as JSON")
	return cmd
}

func renderItem(out io.Writer, item *inventory.Item) {
	label, _ := inventory.LabelCode(item.Kind, item.ID)
	rows := [][]string{
		{"ID", strconv.FormatInt(item.ID, 10)},
		{"Kind", item.Kind},
		{"Name", item.Name},
		{"Serial", item.Serial},
		{"Location", item.Location},
		{"Status", item.Status},
		{"Label", label},
		{"Codes", strings.Join(item.Codes, ", ")},
		{"Notes", item.Notes},
		{"Updated", item.UpdatedAt.Local().Format("2006-01-02 15:04")},
	}
	fmt.Fprint(out, renderTable(cols("Field", "Value"), rows, ""))
}

func newItemStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id|code> <active|retired|missing>",
		Short: "Change an item's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *inventory.Store) error {
				item, err := findItem(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				if err := store.SetStatus(cmd.Context(), item.ID, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item #%d is now %s\n", item.ID, strings.ToLower(strings.TrimSpace(args[1])))
				return nil
			})
		},
	}
}

func newItemCodeCommand(ctx *commandContext) *cobra.Command {
	codeCmd := &cobra.Command{
		Use:   "code",
		Short: "Bind or unbind barcode payloads",
	}
	codeCmd.AddCommand(&cobra.Command{
		Use:   "add <id> <code>",
		Short: "Bind a code to an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return withStore(ctx, func(store *inventory.Store) error {
				if err := store.AddCode(cmd.Context(), id, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Bound %s to item #%d\n", inventory.NormalizePayload(args[1]), id)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "remove <code>",
		Short: "Unbind a code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *inventory.Store) error {
				removed, err := store.RemoveCode(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("code %q is not bound", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", inventory.NormalizePayload(args[0]))
				return nil
			})
		},
	})
	return codeCmd
}

func newItemImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import items from a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *inventory.Store) error {
				result, err := store.ImportPath(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %s\n", formatCount(len(result.Added), "item"))
				for _, failure := range result.Failures {
					fmt.Fprintf(out, "  entry %d (%s): %v\n", failure.Index+1, failure.Name, failure.Err)
				}
				if len(result.Failures) > 0 {
					return fmt.Errorf("%s failed to import", formatCount(len(result.Failures), "entry"))
				}
				return nil
			})
		},
	}
}

func newItemExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.yaml]",
		Short: "Export every item as YAML (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *inventory.Store) error {
				if len(args) == 0 {
					return store.Export(cmd.Context(), cmd.OutOrStdout())
				}
				file, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := store.Export(cmd.Context(), file); err != nil {
					_ = file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported inventory to %s\n", args[0])
				return nil
			})
		},
	}
}
