package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"shortforge/internal/config"
	"shortforge/internal/ledger"
	"shortforge/internal/logging"
	"shortforge/internal/procexec"
)

// errWorkspaceBusy is returned when another shortforge process holds the
// workspace lock.
var errWorkspaceBusy = errors.New("workspace is locked by another shortforge run")

type commandContext struct {
	configFlag *string
	verbose    *bool
	runner     procexec.Runner

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, verbose *bool, runner procexec.Runner) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
		runner:     runner,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if c.verbose != nil && *c.verbose {
			cfg.Logging.Level = "debug"
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// toolRunner returns the runner external tools execute through.
func (c *commandContext) toolRunner(timeoutSeconds int, env []string, logger *slog.Logger) procexec.Runner {
	if c.runner != nil {
		return c.runner
	}
	return procexec.ExecRunner{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Env:     env,
		Logger:  logger,
	}
}

// withLock runs fn while holding the workspace lock so two batch runs never
// write the same stage directories.
func (c *commandContext) withLock(fn func() error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w (%s)", errWorkspaceBusy, cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func (c *commandContext) openLedger() (*ledger.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return store, nil
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
