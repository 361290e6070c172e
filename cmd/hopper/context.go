package main

import (
	"context"
	"strings"
	"sync"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/config"
	"hopper/internal/daemonrun"
	"hopper/internal/logging"
)

// commandContext resolves shared command dependencies lazily so fast commands
// (config init, help) never touch the database.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// configPath returns the --config flag value, if any.
func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
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
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the catalog store for the duration of fn.
func (c *commandContext) withStore(ctx context.Context, fn func(*catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// withEngine opens the store and a fully wired chain manager for the duration
// of fn. Default configs are seeded first so a fresh database behaves the
// same from the CLI as from the daemon.
func (c *commandContext) withEngine(ctx context.Context, fn func(*catalog.Store, *chain.Manager) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	return c.withStore(ctx, func(store *catalog.Store) error {
		registry, err := daemonrun.BuildRegistry(cfg)
		if err != nil {
			return err
		}
		logger, err := logging.New(logging.Options{
			Level:            "warn",
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		})
		if err != nil {
			return err
		}
		chains := chain.NewManager(store, registry, logger)
		if err := chains.EnsureDefaultConfigs(ctx); err != nil {
			return err
		}
		return fn(store, chains)
	})
}
