// Package mongo implements store.Store on MongoDB via Grove ORM.
// Transactions require a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/store"
)

// colRecords matches the table tag of recordModel.
const colRecords = "greenscore_records"

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB multi-document transactions.
// Every Update first bumps a lock document, so concurrent updates conflict
// immediately and the driver retries them one after another.
type Store struct {
	db     *grove.DB
	mdb    *mongodriver.MongoDB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Connect opens a mongodriver client for uri, checks connectivity and
// wraps it in a grove.DB using database.
func Connect(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	mdb := mongodriver.New()
	if err := mdb.Open(ctx, uri, mongodriver.WithDatabase(database)); err != nil {
		return nil, fmt.Errorf("greenscore/mongo: connect: %w", err)
	}
	db, err := grove.Open(mdb)
	if err != nil {
		_ = mdb.Close()
		return nil, fmt.Errorf("greenscore/mongo: open grove: %w", err)
	}
	return New(db, opts...), nil
}

// New creates a store backed by an existing grove database. It panics if
// db is not driven by mongodriver.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		mdb:    mongodriver.Unwrap(db),
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
	client := s.mdb.Client()
	if client == nil {
		return greenscore.ErrStoreClosed
	}
	session, err := client.StartSession()
	if err != nil {
		if errors.Is(err, mongo.ErrClientDisconnected) {
			return greenscore.ErrStoreClosed
		}
		return fmt.Errorf("greenscore/mongo: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc context.Context) (any, error) {
		t := newTx(sc, s.mdb, writable)
		if writable {
			if err := t.lock(); err != nil {
				return nil, err
			}
		}
		return nil, fn(t)
	})
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: greenscore/mongo: %w", greenscore.ErrTransactionFailed, err)
	}
	return err
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		if errors.Is(err, grove.ErrDriverClosed) || errors.Is(err, mongo.ErrClientDisconnected) {
			return greenscore.ErrStoreClosed
		}
		return err
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.db.Close()
}

// tx runs every operation under the session context handed out by
// WithTransaction. The ctx arguments of store.Tx are ignored; a plain
// context would run the operation outside the transaction.
type tx struct {
	ctx      context.Context
	mdb      *mongodriver.MongoDB
	writable bool
}

func newTx(sc context.Context, mdb *mongodriver.MongoDB, writable bool) *tx {
	return &tx{ctx: sc, mdb: mdb, writable: writable}
}

func (t *tx) lock() error {
	_, err := t.mdb.NewUpdate((*lockModel)(nil)).
		Filter(bson.M{"_id": docLock}).
		SetUpdate(bson.M{"$inc": bson.M{"seq": int64(1)}}).
		Upsert().
		Exec(t.ctx)
	if err != nil {
		return fmt.Errorf("greenscore/mongo: lock: %w", err)
	}
	return nil
}

func (t *tx) getCounter(id string) (uint64, error) {
	var m counterModel
	err := t.mdb.NewFind(&m).
		Filter(bson.M{"_id": id}).
		Scan(t.ctx)
	if isNoDocuments(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("greenscore/mongo: get %s: %w", id, err)
	}
	return uint64(m.Value), nil
}

func (t *tx) setCounter(id string, v uint64) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	_, err := t.mdb.NewUpdate((*counterModel)(nil)).
		Filter(bson.M{"_id": id}).
		SetUpdate(bson.M{"$set": bson.M{"value": int64(v)}}).
		Upsert().
		Exec(t.ctx)
	if err != nil {
		return fmt.Errorf("greenscore/mongo: set %s: %w", id, err)
	}
	return nil
}

func (t *tx) RecordCount(_ context.Context) (uint64, error) {
	return t.getCounter(docRecordCount)
}

func (t *tx) SetRecordCount(_ context.Context, n uint64) error {
	return t.setCounter(docRecordCount, n)
}

func (t *tx) GetRecord(_ context.Context, entityID uint64) (*record.Record, error) {
	var m recordModel
	err := t.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(entityID)}).
		Scan(t.ctx)
	if isNoDocuments(err) {
		return nil, greenscore.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("greenscore/mongo: get record %d: %w", entityID, err)
	}
	return fromRecordModel(&m)
}

func (t *tx) PutRecord(_ context.Context, r *record.Record) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	m := toRecordModel(r)
	_, err := t.mdb.NewUpdate((*recordModel)(nil)).
		Filter(bson.M{"_id": m.EntityID}).
		SetUpdate(bson.M{"$set": bson.M{
			"entity_name":         m.EntityName,
			"entity_type":         m.EntityType,
			"carbon_emission":     m.CarbonEmission,
			"verification_status": m.VerificationStatus,
			"timestamp":           m.Timestamp,
		}}).
		Upsert().
		Exec(t.ctx)
	if err != nil {
		return fmt.Errorf("greenscore/mongo: put record %d: %w", r.EntityID, err)
	}
	return nil
}

func (t *tx) ListRecords(_ context.Context, opts record.ListOpts) ([]*record.Record, error) {
	filter := bson.M{}
	if opts.EntityType != "" {
		filter["entity_type"] = string(opts.EntityType)
	}
	if opts.Verified != nil {
		filter["verification_status"] = *opts.Verified
	}

	var models []recordModel
	q := t.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if err := q.Scan(t.ctx); err != nil {
		return nil, fmt.Errorf("greenscore/mongo: list records: %w", err)
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

func (t *tx) GetStats(_ context.Context) (*stats.Stats, error) {
	var m statsModel
	err := t.mdb.NewFind(&m).
		Filter(bson.M{"_id": docStats}).
		Scan(t.ctx)
	if isNoDocuments(err) {
		return nil, greenscore.ErrStatsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("greenscore/mongo: get stats: %w", err)
	}
	return fromStatsModel(&m)
}

func (t *tx) PutStats(_ context.Context, st *stats.Stats) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	m := toStatsModel(st)
	_, err := t.mdb.NewUpdate((*statsModel)(nil)).
		Filter(bson.M{"_id": docStats}).
		SetUpdate(bson.M{"$set": bson.M{
			"total_records":           m.TotalRecords,
			"verified_records":        m.VerifiedRecords,
			"total_emissions_tracked": m.TotalEmissionsTracked,
			"company_count":           m.CompanyCount,
			"product_count":           m.ProductCount,
		}}).
		Upsert().
		Exec(t.ctx)
	if err != nil {
		return fmt.Errorf("greenscore/mongo: put stats: %w", err)
	}
	return nil
}

func (t *tx) ExtendTTL(_ context.Context, ttl store.TTL, now uint64) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	current, err := t.getCounter(docLiveUntil)
	if err != nil {
		return err
	}
	if next := ttl.Extend(current, now); next != current {
		return t.setCounter(docLiveUntil, next)
	}
	return nil
}

func (t *tx) LiveUntil(_ context.Context) (uint64, error) {
	return t.getCounter(docLiveUntil)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// isDomainError reports whether err came from the ledger callback rather
// than the driver.
func isDomainError(err error) bool {
	return greenscore.IsNotFound(err) ||
		greenscore.IsValidationError(err) ||
		greenscore.IsAuthError(err) ||
		errors.Is(err, greenscore.ErrReadOnly)
}
