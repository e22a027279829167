package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"shelfscan/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigShowCommand(ctx),
	)
	return configCmd
}

// resolveConfigTarget expands an explicit path or falls back to the default
// config location.
func resolveConfigTarget(raw string) (string, error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		path, err := config.ExpandPath(raw)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return path, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveConfigTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				switch _, err := os.Stat(target); {
				case err == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(err, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit [camera] and [inventory] to match your setup, then run `shelfscan status`.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing configuration file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report what the scanner will use",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			formats, err := cfg.EnabledFormats()
			if err != nil {
				return err
			}
			lines := []string{"Config path: " + path}
			if !exists {
				lines = append(lines, "Config file did not exist; defaults were used")
			}
			lines = append(lines,
				"Camera source: "+cfg.Camera.Source,
				"Inventory: "+cfg.Inventory.Backend,
				"Enabled formats: "+strings.Join(formats.Strings(), ", "),
				"API token set: "+yesNo(cfg.Paths.APIToken != ""),
				"Configuration valid",
			)
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
			return nil
		},
	}
}

// newConfigShowCommand prints the effective configuration, with defaults and
// environment overrides applied, as TOML. The API token is redacted.
func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			effective := *cfg
			if effective.Paths.APIToken != "" {
				effective.Paths.APIToken = "<redacted>"
			}
			data, err := toml.Marshal(effective)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
