package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/plugin"
	"github.com/xraph/greenscore/store"
)

// Option configures the greenscore Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger. It takes precedence over the
// configured driver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from an opened grove database, choosing the
// postgres, sqlite or mongo backend from its driver. It takes precedence
// over the configured driver; WithStore takes precedence over it.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithLedgerOption passes a greenscore.Option through to the underlying ledger.
func WithLedgerOption(opt greenscore.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, greenscore.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithDriver selects the store backend by name and DSN.
func WithDriver(name, dsn string) Option {
	return func(e *Extension) {
		e.config.Store.Driver = name
		e.config.Store.DSN = dsn
	}
}

// WithTTL sets the lifetime extension policy in ledgers.
func WithTTL(threshold, extendTo uint32) Option {
	return func(e *Extension) {
		e.config.TTLThreshold = threshold
		e.config.TTLExtendTo = extendTo
	}
}

// WithLedgerInterval sets the wall-clock length of one ledger.
func WithLedgerInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.LedgerInterval = d }
}
