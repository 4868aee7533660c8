package mongo

import (
	"context"
	"fmt"

	"github.com/xraph/grove/drivers/mongodriver/mongomigrate" // also registers the "mongo" migration executor
	"github.com/xraph/grove/migrate"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/greenscore"
)

// Migrations is the grove migration group for the greenscore store (MongoDB).
var Migrations = migrate.NewGroup("greenscore")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_greenscore_records",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				mexec, ok := exec.(*mongomigrate.Executor)
				if !ok {
					return fmt.Errorf("expected mongomigrate executor, got %T", exec)
				}
				return mexec.CreateIndexes(ctx, colRecords, []mongo.IndexModel{
					{
						Keys: bson.D{
							{Key: "entity_type", Value: 1},
							{Key: "verification_status", Value: 1},
						},
						Options: options.Index().SetName("idx_greenscore_records_type_verified"),
					},
				})
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				mexec, ok := exec.(*mongomigrate.Executor)
				if !ok {
					return fmt.Errorf("expected mongomigrate executor, got %T", exec)
				}
				return mexec.DropCollection(ctx, (*recordModel)(nil))
			},
		},
	)
}

// Migrate creates the greenscore indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.mdb)
	if err != nil {
		return fmt.Errorf("%w: greenscore/mongo: create migration executor: %w", greenscore.ErrMigrationFailed, err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	res, err := orch.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("%w: greenscore/mongo: %w", greenscore.ErrMigrationFailed, err)
	}
	if n := len(res.Applied); n > 0 {
		s.logger.Info("greenscore/mongo: migrations applied", "count", n)
	}
	return nil
}
