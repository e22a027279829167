package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"shelfscan/internal/api"
	"shelfscan/internal/config"
	"shelfscan/internal/daemonctl"
	"shelfscan/internal/daemonrun"
	"shelfscan/internal/inventory"
	"shelfscan/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) resolvedLogLevel(cfg *config.Config) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	if cfg != nil {
		return cfg.Logging.Level
	}
	return "info"
}

// localLogger logs to stderr so command output on stdout stays clean. One-shot
// commands default to warnings only.
func (c *commandContext) localLogger() *slog.Logger {
	level := "warn"
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		level = *c.logLevelFlag
	}
	format := "console"
	if cfg := c.configValue(); cfg != nil && cfg.Logging.Format != "" {
		format = cfg.Logging.Format
	}
	logger, err := logging.New(logging.Options{
		Level:   level,
		Format:  format,
		Outputs: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) client() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return daemonctl.NewClient(cfg), nil
}

func (c *commandContext) components() (*daemonrun.Components, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return daemonrun.Build(cfg, c.localLogger())
}

// openStore opens the local inventory database regardless of the lookup backend.
func (c *commandContext) openStore() (*inventory.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return inventory.Open(cfg)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
