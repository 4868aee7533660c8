// Package driver opens a store.Store backend by name.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/grove"

	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/store/memory"
	"github.com/xraph/greenscore/store/mongo"
	"github.com/xraph/greenscore/store/postgres"
	"github.com/xraph/greenscore/store/redis"
	"github.com/xraph/greenscore/store/sqlite"
)

// Supported driver names.
const (
	Memory   = "memory"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Mongo    = "mongo"
	Redis    = "redis"
)

// Config selects and addresses a backend.
type Config struct {
	// Driver is one of memory, sqlite, postgres, mongo, redis (default memory).
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DSN is the file path (sqlite), connection string (postgres),
	// URI (mongo) or redis:// URL (redis).
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// Database is the mongo database name (default "greenscore").
	Database string `json:"database" mapstructure:"database" yaml:"database"`

	// Prefix namespaces the redis hash (default "greenscore").
	Prefix string `json:"prefix" mapstructure:"prefix" yaml:"prefix"`

	// Expire lets redis EXPIRE the instance hash with the TTL window.
	// Off by default: an expired hash loses REC_CNT and IDs are reused.
	Expire bool `json:"expire" mapstructure:"expire" yaml:"expire"`
}

// Open connects to the configured backend. It does not migrate.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Driver != Memory && cfg.Driver != "" && cfg.DSN == "" {
		return nil, fmt.Errorf("greenscore: store driver %q requires a dsn", cfg.Driver)
	}

	switch cfg.Driver {
	case Memory, "":
		return memory.New(), nil
	case SQLite:
		return wrap(sqlite.Open(ctx, cfg.DSN, sqlite.WithLogger(logger)))
	case Postgres:
		return wrap(postgres.Connect(ctx, cfg.DSN, postgres.WithLogger(logger)))
	case Mongo:
		database := cfg.Database
		if database == "" {
			database = "greenscore"
		}
		return wrap(mongo.Connect(ctx, cfg.DSN, database, mongo.WithLogger(logger)))
	case Redis:
		opts := []redis.Option{redis.WithLogger(logger)}
		if cfg.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Prefix))
		}
		if cfg.Expire {
			opts = append(opts, redis.WithExpiry())
		}
		return wrap(redis.Connect(ctx, cfg.DSN, opts...))
	default:
		return nil, fmt.Errorf("greenscore: unknown store driver %q", cfg.Driver)
	}
}

// FromGrove builds the backend matching the driver of an already opened
// grove database (pg, sqlite or mongo). The store takes ownership of db:
// closing the store closes it.
func FromGrove(db *grove.DB, logger *slog.Logger) (store.Store, error) {
	if db == nil {
		return nil, fmt.Errorf("greenscore: nil grove database")
	}
	if logger == nil {
		logger = slog.Default()
	}
	switch name := db.Driver().Name(); name {
	case "pg":
		return postgres.New(db, postgres.WithLogger(logger)), nil
	case SQLite:
		return sqlite.New(db, sqlite.WithLogger(logger)), nil
	case Mongo:
		return mongo.New(db, mongo.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("greenscore: unsupported grove driver %q", name)
	}
}

// wrap keeps a failed open from returning a typed nil inside store.Store.
func wrap[S store.Store](s S, err error) (store.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
