package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/store/mongo"
	"github.com/xraph/greenscore/store/storetest"
)

// The suite needs a replica set:
//
//	GREENSCORE_TEST_MONGO_URI=mongodb://localhost:27017/?replicaSet=rs0
func openStore(t *testing.T) store.Store {
	t.Helper()
	uri := os.Getenv("GREENSCORE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("GREENSCORE_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	database := fmt.Sprintf("greenscore_test_%d", time.Now().UnixNano())
	s, err := mongo.Connect(ctx, uri, database)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		_ = mongodriver.Unwrap(s.DB()).Database().Drop(context.Background())
		_ = s.Close()
	})

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, openStore)
}

func TestMigrationGroup(t *testing.T) {
	if got := mongo.Migrations.Name(); got != "greenscore" {
		t.Errorf("group name: got %q, want greenscore", got)
	}
	ms := mongo.Migrations.Migrations()
	if len(ms) != 1 {
		t.Fatalf("migrations: got %d, want 1", len(ms))
	}
	if ms[0].Name != "create_greenscore_records" {
		t.Errorf("migration name: got %q", ms[0].Name)
	}
	if ms[0].Up == nil || ms[0].Down == nil {
		t.Error("migration: missing Up or Down")
	}
}
