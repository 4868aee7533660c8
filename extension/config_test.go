package extension

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/grove"
	grovedriver "github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/greenscore/store/driver"
)

func TestMergeWithDefaults(t *testing.T) {
	got := mergeWithDefaults(Config{TTLThreshold: 10})
	if got.TTLThreshold != 10 {
		t.Errorf("TTLThreshold: got %d, want 10", got.TTLThreshold)
	}
	if got.TTLExtendTo != 5000 || got.LedgerInterval != 5*time.Second {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got.Store.Driver != driver.Memory {
		t.Errorf("Store.Driver: got %q, want memory", got.Store.Driver)
	}
}

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name string
		yaml Config
		prog Config
		want Config
	}{
		{
			name: "yaml wins",
			yaml: Config{Store: driver.Config{Driver: driver.SQLite, DSN: "a.db"}, TTLThreshold: 100},
			prog: Config{Store: driver.Config{Driver: driver.Redis, DSN: "redis://x"}, TTLThreshold: 7},
			want: Config{Store: driver.Config{Driver: driver.SQLite, DSN: "a.db"}, TTLThreshold: 100, TTLExtendTo: 5000, LedgerInterval: 5 * time.Second},
		},
		{
			name: "programmatic fills gaps",
			yaml: Config{TTLExtendTo: 200},
			prog: Config{Store: driver.Config{Driver: driver.Postgres, DSN: "postgres://"}, LedgerInterval: time.Second, DisableMigrate: true},
			want: Config{Store: driver.Config{Driver: driver.Postgres, DSN: "postgres://"}, TTLThreshold: 5000, TTLExtendTo: 200, LedgerInterval: time.Second, DisableMigrate: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeConfigurations(tt.yaml, tt.prog); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfigTTL(t *testing.T) {
	ttl := DefaultConfig().TTL()
	if ttl.Threshold != 5000 || ttl.ExtendTo != 5000 || ttl.Window() != 25000*time.Second {
		t.Errorf("default ttl: %+v", ttl)
	}
}

func TestWithGroveDB(t *testing.T) {
	ctx := context.Background()
	sdb := sqlitedriver.New()
	if err := sdb.Open(ctx, "file:"+filepath.Join(t.TempDir(), "gs.db"), grovedriver.WithPoolSize(1)); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		t.Fatalf("grove.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	e := New(WithGroveDB(db), WithDriver(driver.Redis, "redis://unused"))
	if e.groveDB != db {
		t.Fatal("grove database not kept")
	}
	if e.store != nil {
		t.Error("store opened before Register")
	}
}
