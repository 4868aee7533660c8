package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xraph/greenscore/export"
	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/store/driver"
)

// Config is the daemon configuration. Values come from the YAML file,
// then GREENSCORE_* environment variables (a .env file in the working
// directory is loaded first when present).
type Config struct {
	Env         string        `yaml:"env"`
	Addr        string        `yaml:"addr"`
	CORSOrigins []string      `yaml:"cors_origins"`
	Store       driver.Config `yaml:"store"`
	TTL         store.TTL     `yaml:"ttl"`
	JWT         JWTConfig     `yaml:"jwt"`
	Export      ExportConfig  `yaml:"export"`
}

// JWTConfig configures bearer token verification.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// ExportConfig enables periodic snapshot export when Interval is set.
// Dir and S3.Bucket select the sink; Dir wins when both are set.
type ExportConfig struct {
	Interval time.Duration   `yaml:"interval"`
	Prefix   string          `yaml:"prefix"`
	Dir      string          `yaml:"dir"`
	S3       export.S3Config `yaml:"s3"`
}

func defaultConfig() Config {
	return Config{
		Env:   "development",
		Addr:  ":8080",
		Store: driver.Config{Driver: driver.Memory},
		TTL:   store.DefaultTTL(),
		JWT:   JWTConfig{Issuer: "greenscore"},
	}
}

// IsProduction reports whether Env selects production logging and gin mode.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.JWT.Secret == "" {
		return Config{}, errors.New("jwt secret is required (jwt.secret or GREENSCORE_JWT_SECRET)")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"GREENSCORE_ENV":            &cfg.Env,
		"GREENSCORE_ADDR":           &cfg.Addr,
		"GREENSCORE_STORE_DRIVER":   &cfg.Store.Driver,
		"GREENSCORE_STORE_DSN":      &cfg.Store.DSN,
		"GREENSCORE_STORE_DATABASE": &cfg.Store.Database,
		"GREENSCORE_STORE_PREFIX":   &cfg.Store.Prefix,
		"GREENSCORE_JWT_SECRET":     &cfg.JWT.Secret,
		"GREENSCORE_JWT_ISSUER":     &cfg.JWT.Issuer,
		"GREENSCORE_EXPORT_PREFIX":  &cfg.Export.Prefix,
		"GREENSCORE_EXPORT_DIR":     &cfg.Export.Dir,
		"GREENSCORE_S3_BUCKET":      &cfg.Export.S3.Bucket,
		"GREENSCORE_S3_REGION":      &cfg.Export.S3.Region,
		"GREENSCORE_S3_ENDPOINT":    &cfg.Export.S3.Endpoint,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("GREENSCORE_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("GREENSCORE_STORE_EXPIRE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GREENSCORE_STORE_EXPIRE: %w", err)
		}
		cfg.Store.Expire = b
	}
	if v := os.Getenv("GREENSCORE_EXPORT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GREENSCORE_EXPORT_INTERVAL: %w", err)
		}
		cfg.Export.Interval = d
	}
	return nil
}
