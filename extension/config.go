package extension

import (
	"time"

	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/store/driver"
)

// Config holds the greenscore extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.greenscore" or "greenscore" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Store selects the backend when no store is passed with WithStore.
	Store driver.Config `json:"store" mapstructure:"store" yaml:"store"`

	// TTLThreshold and TTLExtendTo are the lifetime extension policy in
	// ledgers (default: 5000/5000).
	TTLThreshold uint32 `json:"ttl_threshold" mapstructure:"ttl_threshold" yaml:"ttl_threshold"`
	TTLExtendTo  uint32 `json:"ttl_extend_to" mapstructure:"ttl_extend_to" yaml:"ttl_extend_to"`

	// LedgerInterval is the wall-clock length of one ledger (default: 5s).
	LedgerInterval time.Duration `json:"ledger_interval" mapstructure:"ledger_interval" yaml:"ledger_interval"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	ttl := store.DefaultTTL()
	return Config{
		Store:          driver.Config{Driver: driver.Memory},
		TTLThreshold:   ttl.Threshold,
		TTLExtendTo:    ttl.ExtendTo,
		LedgerInterval: ttl.LedgerInterval,
	}
}

// TTL returns the configured lifetime extension policy.
func (c Config) TTL() store.TTL {
	return store.TTL{
		Threshold:      c.TTLThreshold,
		ExtendTo:       c.TTLExtendTo,
		LedgerInterval: c.LedgerInterval,
	}
}
