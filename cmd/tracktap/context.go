package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tracktap/internal/config"
	"tracktap/internal/daemonctl"
	"tracktap/internal/history"
	"tracktap/internal/logging"
	"tracktap/internal/playlist"
	"tracktap/internal/recorder"
	"tracktap/internal/recordings"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) logLevel() string {
	if c.verbose != nil && *c.verbose {
		return "debug"
	}
	return ""
}

// logger writes to the rotating log file and to the command's stderr so
// warnings such as a manual playback prompt stay visible next to progress.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts, err := logging.ConfigOptions(cfg)
	if err != nil {
		return nil, err
	}
	if level := c.logLevel(); level != "" {
		opts.Level = level
	}
	opts.Console = cmd.ErrOrStderr()
	return logging.New(opts)
}

func (c *commandContext) withStack(cmd *cobra.Command, fn func(*recorder.Stack) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger(cmd)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	stack, err := recorder.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(stack)
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

func (c *commandContext) catalog() (*playlist.Catalog, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return playlist.NewCatalog(cfg.Paths.PlaylistsDir), nil
}

func (c *commandContext) library() (*recordings.Library, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return recordings.NewLibrary(cfg.Paths.OutputDir), nil
}

func (c *commandContext) withHistory(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) launchOptions() daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: c.configPath, LogLevel: c.logLevel()}
	if flag := c.configFlagValue(); flag != "" {
		opts.ConfigPath = flag
	}
	return opts
}
