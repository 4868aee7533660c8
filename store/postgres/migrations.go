package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the greenscore store.
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
    value BIGINT NOT NULL
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
    entity_id           BIGINT PRIMARY KEY CHECK (entity_id > 0),
    entity_name         TEXT NOT NULL DEFAULT '',
    entity_type         TEXT NOT NULL CHECK (entity_type IN ('Company', 'Product')),
    carbon_emission     NUMERIC(39, 0) NOT NULL DEFAULT 0,
    verification_status BOOLEAN NOT NULL DEFAULT FALSE,
    timestamp           BIGINT NOT NULL DEFAULT 0
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
    id                      SMALLINT PRIMARY KEY CHECK (id = 1),
    total_records           BIGINT NOT NULL DEFAULT 0,
    verified_records        BIGINT NOT NULL DEFAULT 0,
    total_emissions_tracked NUMERIC(39, 0) NOT NULL DEFAULT 0,
    company_count           BIGINT NOT NULL DEFAULT 0,
    product_count           BIGINT NOT NULL DEFAULT 0
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
