// Package postgres implements store.Store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the "pg" migration executor
	"github.com/xraph/grove/migrate"

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

	// defaultLockKey identifies the ledger in pg_advisory_xact_lock.
	defaultLockKey int64 = 0x6772656e73636f72 // "grenscor"
)

// Store implements store.Store using PostgreSQL via Grove ORM. Update
// transactions take a transaction-scoped advisory lock so that ledger
// operations are applied one at a time across every process sharing the
// database.
type Store struct {
	db      *grove.DB
	pg      *pgdriver.PgDB
	logger  *slog.Logger
	lockKey int64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithLockKey overrides the advisory lock key, for several ledgers in
// one database.
func WithLockKey(key int64) Option {
	return func(s *Store) { s.lockKey = key }
}

// Connect opens a pgdriver pool for dsn, checks connectivity and wraps it
// in a grove.DB.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pgdb := pgdriver.New()
	if err := pgdb.Open(ctx, dsn); err != nil {
		return nil, fmt.Errorf("greenscore/postgres: connect: %w", err)
	}
	if err := pgdb.Ping(ctx); err != nil {
		_ = pgdb.Close()
		return nil, fmt.Errorf("greenscore/postgres: ping: %w", err)
	}
	db, err := grove.Open(pgdb)
	if err != nil {
		_ = pgdb.Close()
		return nil, fmt.Errorf("greenscore/postgres: open grove: %w", err)
	}
	return New(db, opts...), nil
}

// New creates a store backed by an existing grove database. It panics if
// db is not driven by pgdriver.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:      db,
		pg:      pgdriver.Unwrap(db),
		logger:  slog.Default(),
		lockKey: defaultLockKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove
// orchestrator, which holds its own migration lock.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("%w: greenscore/postgres: create migration executor: %w", greenscore.ErrMigrationFailed, err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	res, err := orch.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("%w: greenscore/postgres: %w", greenscore.ErrMigrationFailed, err)
	}
	if n := len(res.Applied); n > 0 {
		s.logger.Info("greenscore/postgres: migrations applied", "count", n)
	}
	return nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	ptx, err := s.pg.BeginTxQuery(ctx, &driver.TxOptions{})
	if err != nil {
		return s.beginErr(err)
	}
	defer func() { _ = ptx.Rollback() }()

	if _, err := ptx.NewRaw(`SELECT pg_advisory_xact_lock($1)`, s.lockKey).Exec(ctx); err != nil {
		return fmt.Errorf("greenscore/postgres: lock: %w", err)
	}
	if err := fn(&tx{tx: ptx, writable: true}); err != nil {
		return err
	}
	if err := ptx.Commit(); err != nil {
		return fmt.Errorf("%w: greenscore/postgres: commit: %w", greenscore.ErrTransactionFailed, err)
	}
	return nil
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	ptx, err := s.pg.BeginTxQuery(ctx, &driver.TxOptions{
		IsolationLevel: driver.LevelRepeatableRead,
		ReadOnly:       true,
	})
	if err != nil {
		return s.beginErr(err)
	}
	defer func() { _ = ptx.Rollback() }()

	return fn(&tx{tx: ptx})
}

func (s *Store) beginErr(err error) error {
	if errors.Is(s.db.Ping(context.Background()), grove.ErrDriverClosed) {
		return greenscore.ErrStoreClosed
	}
	return fmt.Errorf("greenscore/postgres: begin: %w", err)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		if errors.Is(err, grove.ErrDriverClosed) {
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
	tx       *pgdriver.PgTx
	writable bool
}

func (t *tx) getMeta(ctx context.Context, key string) (uint64, error) {
	m := new(metaModel)
	err := t.tx.NewSelect(m).
		Where("key = $1", key).
		Scan(ctx)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("greenscore/postgres: get %s: %w", key, err)
	}
	return uint64(m.Value), nil
}

func (t *tx) setMeta(ctx context.Context, key string, v uint64) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	_, err := t.tx.NewInsert(&metaModel{Key: key, Value: int64(v)}).
		OnConflict("(key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("greenscore/postgres: set %s: %w", key, err)
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
		Where("entity_id = $1", int64(entityID)).
		Scan(ctx)
	if isNoRows(err) {
		return nil, greenscore.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("greenscore/postgres: get record %d: %w", entityID, err)
	}
	return fromRecordModel(m)
}

func (t *tx) PutRecord(ctx context.Context, r *record.Record) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	_, err := t.tx.NewInsert(toRecordModel(r)).
		OnConflict("(entity_id) DO UPDATE").
		Set("entity_name = EXCLUDED.entity_name").
		Set("entity_type = EXCLUDED.entity_type").
		Set("carbon_emission = EXCLUDED.carbon_emission").
		Set("verification_status = EXCLUDED.verification_status").
		Set("timestamp = EXCLUDED.timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("greenscore/postgres: put record %d: %w", r.EntityID, err)
	}
	return nil
}

func (t *tx) ListRecords(ctx context.Context, opts record.ListOpts) ([]*record.Record, error) {
	var models []recordModel
	q := t.tx.NewSelect(&models)

	argIdx := 0
	if opts.EntityType != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("entity_type = $%d", argIdx), string(opts.EntityType))
	}
	if opts.Verified != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("verification_status = $%d", argIdx), *opts.Verified)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("entity_id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("greenscore/postgres: list records: %w", err)
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
		Where("id = $1", int16(1)).
		Scan(ctx)
	if isNoRows(err) {
		return nil, greenscore.ErrStatsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("greenscore/postgres: get stats: %w", err)
	}
	return fromStatsModel(m)
}

func (t *tx) PutStats(ctx context.Context, st *stats.Stats) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	_, err := t.tx.NewInsert(toStatsModel(st)).
		OnConflict("(id) DO UPDATE").
		Set("total_records = EXCLUDED.total_records").
		Set("verified_records = EXCLUDED.verified_records").
		Set("total_emissions_tracked = EXCLUDED.total_emissions_tracked").
		Set("company_count = EXCLUDED.company_count").
		Set("product_count = EXCLUDED.product_count").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("greenscore/postgres: put stats: %w", err)
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
		return types.Emission{}, fmt.Errorf("greenscore/postgres: %s: %w", field, err)
	}
	return e, nil
}

// isNoRows checks for the no-rows sentinel of pgx and database/sql.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}
