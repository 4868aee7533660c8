// Package sqlite implements store.Store on SQLite via Grove ORM and the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

const (
	keyRecordCount = "REC_CNT"
	keyLiveUntil   = "LIVE_UNTIL"
)

// Store implements store.Store using SQLite. The pool is limited to a
// single connection, which serialises transactions within the process;
// busy_timeout covers other processes sharing the file.
type Store struct {
	db     *grove.DB
	sdb    *sqlitedriver.SqliteDB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens (or creates) the database file at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("greenscore/sqlite: empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("greenscore/sqlite: create db dir: %w", err)
		}
	}

	dsn := "file:" + path + "?mode=rwc" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	sdb := sqlitedriver.New()
	if err := sdb.Open(ctx, dsn, driver.WithPoolSize(1)); err != nil {
		return nil, fmt.Errorf("greenscore/sqlite: open: %w", err)
	}
	if err := sdb.Ping(ctx); err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("greenscore/sqlite: ping: %w", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("greenscore/sqlite: open grove: %w", err)
	}
	return New(db, opts...), nil
}

// New creates a store backed by an existing grove database. The caller is
// responsible for limiting the pool to one connection (driver.WithPoolSize).
// It panics if db is not driven by sqlitedriver.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		sdb:    sqlitedriver.Unwrap(db),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, true, fn)
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) run(ctx context.Context, writable bool, fn func(tx store.Tx) error) error {
	stx, err := s.sdb.BeginTxQuery(ctx, &driver.TxOptions{})
	if err != nil {
		if isClosed(err) {
			return greenscore.ErrStoreClosed
		}
		return fmt.Errorf("greenscore/sqlite: begin: %w", err)
	}
	defer func() { _ = stx.Rollback() }()

	if err := fn(&tx{tx: stx, writable: writable}); err != nil {
		return err
	}
	if !writable {
		return nil
	}
	if err := stx.Commit(); err != nil {
		return fmt.Errorf("%w: greenscore/sqlite: commit: %w", greenscore.ErrTransactionFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		if isClosed(err) {
			return greenscore.ErrStoreClosed
		}
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type tx struct {
	tx       *sqlitedriver.SqliteTx
	writable bool
}

func (t *tx) getMeta(ctx context.Context, key string) (uint64, error) {
	m := new(metaModel)
	err := t.tx.NewSelect(m).
		Where("key = ?", key).
		Scan(ctx)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("greenscore/sqlite: get %s: %w", key, err)
	}
	return uint64(m.Value), nil
}

func (t *tx) setMeta(ctx context.Context, key string, v uint64) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	_, err := t.tx.NewInsert(&metaModel{Key: key, Value: int64(v)}).
		OnConflict("(key) DO UPDATE").
		Set("value = excluded.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("greenscore/sqlite: set %s: %w", key, err)
	}
	return nil
}

func (t *tx) RecordCount(ctx context.Context) (uint64, error) {
	return t.getMeta(ctx, keyRecordCount)
}

func (t *tx) SetRecordCount(ctx context.Context, n uint64) error {
	return t.setMeta(ctx, keyRecordCount, n)
}

func (t *tx) GetRecord(ctx context.Context, entityID uint64) (*record.Record, error) {
	m := new(recordModel)
	err := t.tx.NewSelect(m).
		Where("entity_id = ?", int64(entityID)).
		Scan(ctx)
	if isNoRows(err) {
		return nil, greenscore.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("greenscore/sqlite: get record %d: %w", entityID, err)
	}
	return fromRecordModel(m)
}

func (t *tx) PutRecord(ctx context.Context, r *record.Record) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	_, err := t.tx.NewInsert(toRecordModel(r)).
		OnConflict("(entity_id) DO UPDATE").
		Set("entity_name = excluded.entity_name").
		Set("entity_type = excluded.entity_type").
		Set("carbon_emission = excluded.carbon_emission").
		Set("verification_status = excluded.verification_status").
		Set("timestamp = excluded.timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("greenscore/sqlite: put record %d: %w", r.EntityID, err)
	}
	return nil
}

func (t *tx) ListRecords(ctx context.Context, opts record.ListOpts) ([]*record.Record, error) {
	var models []recordModel
	q := t.tx.NewSelect(&models)

	if opts.EntityType != "" {
		q = q.Where("entity_type = ?", string(opts.EntityType))
	}
	if opts.Verified != nil {
		q = q.Where("verification_status = ?", *opts.Verified)
	}
	q = q.OrderExpr("entity_id ASC")

	// SQLite rejects OFFSET without LIMIT.
	switch {
	case opts.Limit > 0:
		q = q.Limit(opts.Limit)
	case opts.Offset > 0:
		q = q.Limit(math.MaxInt32)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("greenscore/sqlite: list records: %w", err)
	}

	out := make([]*record.Record, 0, len(models))
	for i := range models {
		r, err := fromRecordModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (t *tx) GetStats(ctx context.Context) (*stats.Stats, error) {
	m := new(statsModel)
	err := t.tx.NewSelect(m).
		Where("id = ?", 1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, greenscore.ErrStatsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("greenscore/sqlite: get stats: %w", err)
	}
	return fromStatsModel(m)
}

func (t *tx) PutStats(ctx context.Context, st *stats.Stats) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	_, err := t.tx.NewInsert(toStatsModel(st)).
		OnConflict("(id) DO UPDATE").
		Set("total_records = excluded.total_records").
		Set("verified_records = excluded.verified_records").
		Set("total_emissions_tracked = excluded.total_emissions_tracked").
		Set("company_count = excluded.company_count").
		Set("product_count = excluded.product_count").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("greenscore/sqlite: put stats: %w", err)
	}
	return nil
}

func (t *tx) ExtendTTL(ctx context.Context, ttl store.TTL, now uint64) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	current, err := t.getMeta(ctx, keyLiveUntil)
	if err != nil {
		return err
	}
	if next := ttl.Extend(current, now); next != current {
		return t.setMeta(ctx, keyLiveUntil, next)
	}
	return nil
}

func (t *tx) LiveUntil(ctx context.Context) (uint64, error) {
	return t.getMeta(ctx, keyLiveUntil)
}

// parseEmission is shared by the model converters.
func parseEmission(field, s string) (types.Emission, error) {
	e, err := types.ParseEmission(s)
	if err != nil {
		return types.Emission{}, fmt.Errorf("greenscore/sqlite: %s: %w", field, err)
	}
	return e, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isClosed(err error) bool {
	return errors.Is(err, grove.ErrDriverClosed) ||
		errors.Is(err, sql.ErrConnDone) ||
		strings.Contains(err.Error(), "database is closed")
}
