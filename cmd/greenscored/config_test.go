package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "greenscore.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
env: production
addr: ":9090"
store:
  driver: sqlite
  dsn: /var/lib/greenscore.db
ttl:
  threshold: 100
  extend_to: 200
  ledger_interval: 2s
jwt:
  secret: s3cret
export:
  interval: 1m
  dir: /tmp/snapshots
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !cfg.IsProduction() || cfg.Addr != ":9090" {
		t.Errorf("env/addr: %+v", cfg)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN != "/var/lib/greenscore.db" {
		t.Errorf("store: %+v", cfg.Store)
	}
	if cfg.TTL.Threshold != 100 || cfg.TTL.ExtendTo != 200 || cfg.TTL.LedgerInterval != 2*time.Second {
		t.Errorf("ttl: %+v", cfg.TTL)
	}
	if cfg.JWT.Issuer != "greenscore" {
		t.Errorf("issuer default lost: %q", cfg.JWT.Issuer)
	}
	if cfg.Export.Interval != time.Minute || cfg.Export.Dir != "/tmp/snapshots" {
		t.Errorf("export: %+v", cfg.Export)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, "jwt:\n  secret: from-file\n")

	t.Setenv("GREENSCORE_JWT_SECRET", "from-env")
	t.Setenv("GREENSCORE_STORE_DRIVER", "redis")
	t.Setenv("GREENSCORE_STORE_DSN", "redis://localhost:6379/0")
	t.Setenv("GREENSCORE_STORE_EXPIRE", "true")
	t.Setenv("GREENSCORE_CORS_ORIGINS", "http://a,http://b")
	t.Setenv("GREENSCORE_EXPORT_INTERVAL", "30s")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("secret: got %q", cfg.JWT.Secret)
	}
	if cfg.Store.Driver != "redis" || cfg.Store.DSN != "redis://localhost:6379/0" || !cfg.Store.Expire {
		t.Errorf("store: %+v", cfg.Store)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b" {
		t.Errorf("cors: %v", cfg.CORSOrigins)
	}
	if cfg.Export.Interval != 30*time.Second {
		t.Errorf("export interval: %v", cfg.Export.Interval)
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GREENSCORE_JWT_SECRET=dotenv-secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv.Load sets the variable for the rest of the process.
	t.Setenv("GREENSCORE_JWT_SECRET", "")
	os.Unsetenv("GREENSCORE_JWT_SECRET")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.JWT.Secret != "dotenv-secret" {
		t.Errorf("secret: got %q", cfg.JWT.Secret)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GREENSCORE_JWT_SECRET", "")

	tests := []struct {
		name string
		path string
		env  string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.yaml"), ""},
		{"bad yaml", writeConfig(t, "store: [unclosed"), ""},
		{"no secret", writeConfig(t, "addr: ':1'"), ""},
		{"bad interval", writeConfig(t, "jwt: {secret: x}"), "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GREENSCORE_EXPORT_INTERVAL", tt.env)
			if _, err := loadConfig(tt.path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
