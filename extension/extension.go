// Package extension provides the Forge extension adapter for greenscore.
//
// It implements the forge.Extension interface to integrate the carbon
// ledger into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.greenscore" or
// "greenscore" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/store/driver"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "greenscore"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Carbon emission ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the greenscore ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	ledger     *greenscore.Ledger
	store      store.Store
	groveDB    *grove.DB
	ledgerOpts []greenscore.Option
}

// New creates a new greenscore Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger returns the underlying ledger. It is nil until Register is called.
func (e *Extension) Ledger() *greenscore.Ledger { return e.ledger }

// Register implements [forge.Extension]. It loads configuration, opens
// the store, builds the ledger and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil && e.groveDB != nil {
		s, err := driver.FromGrove(e.groveDB, nil)
		if err != nil {
			return fmt.Errorf("greenscore: open store: %w", err)
		}
		e.store = s
	}
	if e.store == nil {
		s, err := driver.Open(context.Background(), e.config.Store, nil)
		if err != nil {
			return fmt.Errorf("greenscore: open store: %w", err)
		}
		e.store = s
	}

	e.ledger = greenscore.New(e.store, e.buildLedgerOpts()...)

	return vessel.Provide(fapp.Container(), func() (*greenscore.Ledger, error) {
		return e.ledger, nil
	})
}

// Start implements [forge.Extension]. Plugins are initialised even when
// migration is disabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.ledger == nil {
		return errors.New("greenscore: extension not initialized")
	}

	if err := e.ledger.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	defer e.MarkStopped()
	if e.ledger != nil {
		return e.ledger.Stop()
	}
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("greenscore: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs greenscore.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []greenscore.Option {
	opts := make([]greenscore.Option, 0, len(e.ledgerOpts)+2)
	opts = append(opts, greenscore.WithTTL(e.config.TTL()))
	if e.config.DisableMigrate {
		opts = append(opts, greenscore.WithoutMigrate())
	}
	// Pass-through options come last so they can override config.
	return append(opts, e.ledgerOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("greenscore: configuration is required but not found in config files; " +
				"ensure 'extensions.greenscore' or 'greenscore' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("greenscore: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("store_driver", e.config.Store.Driver),
		forge.F("ttl_threshold", e.config.TTLThreshold),
		forge.F("ttl_extend_to", e.config.TTLExtendTo),
		forge.F("ledger_interval", e.config.LedgerInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.greenscore", "greenscore"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("greenscore: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("greenscore: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaults.Store.Driver
	}
	if cfg.TTLThreshold == 0 {
		cfg.TTLThreshold = defaults.TTLThreshold
	}
	if cfg.TTLExtendTo == 0 {
		cfg.TTLExtendTo = defaults.TTLExtendTo
	}
	if cfg.LedgerInterval == 0 {
		cfg.LedgerInterval = defaults.LedgerInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps and
// programmatic bool flags override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.Store.Driver == "" {
		yamlConfig.Store = programmaticConfig.Store
	}
	if yamlConfig.TTLThreshold == 0 {
		yamlConfig.TTLThreshold = programmaticConfig.TTLThreshold
	}
	if yamlConfig.TTLExtendTo == 0 {
		yamlConfig.TTLExtendTo = programmaticConfig.TTLExtendTo
	}
	if yamlConfig.LedgerInterval == 0 {
		yamlConfig.LedgerInterval = programmaticConfig.LedgerInterval
	}

	return mergeWithDefaults(yamlConfig)
}
