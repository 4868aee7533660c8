package sqlite

import (
	"context"
	"fmt"

	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the "sqlite" migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/greenscore"
)

// Migrations is the grove migration group for the greenscore store (SQLite).
var Migrations = migrate.NewGroup("greenscore")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_greenscore_meta",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS greenscore_meta (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS greenscore_meta`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_greenscore_records",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS greenscore_records (
    entity_id           INTEGER PRIMARY KEY CHECK (entity_id > 0),
    entity_name         TEXT    NOT NULL DEFAULT '',
    entity_type         TEXT    NOT NULL,
    carbon_emission     TEXT    NOT NULL DEFAULT '0',
    verification_status INTEGER NOT NULL DEFAULT 0,
    timestamp           INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_greenscore_records_type_verified
    ON greenscore_records (entity_type, verification_status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS greenscore_records`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_greenscore_stats",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS greenscore_stats (
    id                      INTEGER PRIMARY KEY CHECK (id = 1),
    total_records           INTEGER NOT NULL DEFAULT 0,
    verified_records        INTEGER NOT NULL DEFAULT 0,
    total_emissions_tracked TEXT    NOT NULL DEFAULT '0',
    company_count           INTEGER NOT NULL DEFAULT 0,
    product_count           INTEGER NOT NULL DEFAULT 0
);`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS greenscore_stats`)
				return err
			},
		},
	)
}

func (s *Store) orchestrator() (*migrate.Orchestrator, error) {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return nil, fmt.Errorf("%w: greenscore/sqlite: create migration executor: %w", greenscore.ErrMigrationFailed, err)
	}
	return migrate.NewOrchestrator(executor, Migrations), nil
}

// Migrate creates the required tables and indexes using the grove
// orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	orch, err := s.orchestrator()
	if err != nil {
		return err
	}
	res, err := orch.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("%w: greenscore/sqlite: %w", greenscore.ErrMigrationFailed, err)
	}
	if n := len(res.Applied); n > 0 {
		s.logger.Info("greenscore/sqlite: migrations applied", "count", n)
	}
	return nil
}

// MigrationStatus reports applied and pending migrations of the
// greenscore group.
func (s *Store) MigrationStatus(ctx context.Context) (*migrate.GroupStatus, error) {
	orch, err := s.orchestrator()
	if err != nil {
		return nil, err
	}
	statuses, err := orch.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("greenscore/sqlite: migration status: %w", err)
	}
	for _, st := range statuses {
		if st.Name == Migrations.Name() {
			return st, nil
		}
	}
	return &migrate.GroupStatus{Name: Migrations.Name()}, nil
}
