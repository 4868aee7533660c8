// Package memory implements store.Store in process memory. It is used by
// tests and by single-process deployments that do not need durability.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps all ledger state in maps guarded by one RWMutex. Update holds
// the write lock for the whole transaction and applies staged writes only
// when the callback succeeds.
type Store struct {
	mu     sync.RWMutex
	closed bool

	count     uint64
	stats     *stats.Stats // nil until first write
	records   map[uint64]*record.Record
	liveUntil uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[uint64]*record.Record),
	}
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return greenscore.ErrStoreClosed
	}

	t := &tx{s: s, writable: true, records: make(map[uint64]*record.Record)}
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return greenscore.ErrStoreClosed
	}
	return fn(&tx{s: s})
}

// Migrate is a no-op.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return greenscore.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. State is kept so a closed store can be
// inspected in tests.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// tx stages writes over the committed state. Reads see staged values first.
type tx struct {
	s        *Store
	writable bool

	count     *uint64
	stats     *stats.Stats
	records   map[uint64]*record.Record
	liveUntil *uint64
}

func (t *tx) commit() {
	if t.count != nil {
		t.s.count = *t.count
	}
	if t.stats != nil {
		t.s.stats = t.stats
	}
	maps.Copy(t.s.records, t.records)
	if t.liveUntil != nil {
		t.s.liveUntil = *t.liveUntil
	}
}

func (t *tx) RecordCount(context.Context) (uint64, error) {
	if t.count != nil {
		return *t.count, nil
	}
	return t.s.count, nil
}

func (t *tx) SetRecordCount(_ context.Context, n uint64) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	t.count = &n
	return nil
}

func (t *tx) GetRecord(_ context.Context, entityID uint64) (*record.Record, error) {
	if r, ok := t.records[entityID]; ok {
		return r.Clone(), nil
	}
	if r, ok := t.s.records[entityID]; ok {
		return r.Clone(), nil
	}
	return nil, greenscore.ErrRecordNotFound
}

func (t *tx) PutRecord(_ context.Context, r *record.Record) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	t.records[r.EntityID] = r.Clone()
	return nil
}

func (t *tx) ListRecords(_ context.Context, opts record.ListOpts) ([]*record.Record, error) {
	merged := maps.Clone(t.s.records)
	maps.Copy(merged, t.records)

	ids := slices.Sorted(maps.Keys(merged))
	out := make([]*record.Record, 0, len(ids))
	for _, id := range ids {
		r := merged[id]
		if opts.Match(r) {
			out = append(out, r.Clone())
		}
	}
	return record.Page(out, opts), nil
}

func (t *tx) GetStats(context.Context) (*stats.Stats, error) {
	if t.stats != nil {
		return t.stats.Clone(), nil
	}
	if t.s.stats != nil {
		return t.s.stats.Clone(), nil
	}
	return nil, greenscore.ErrStatsNotFound
}

func (t *tx) PutStats(_ context.Context, st *stats.Stats) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	t.stats = st.Clone()
	return nil
}

func (t *tx) ExtendTTL(_ context.Context, ttl store.TTL, now uint64) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	current := t.s.liveUntil
	if t.liveUntil != nil {
		current = *t.liveUntil
	}
	next := ttl.Extend(current, now)
	t.liveUntil = &next
	return nil
}

func (t *tx) LiveUntil(context.Context) (uint64, error) {
	if t.liveUntil != nil {
		return *t.liveUntil, nil
	}
	return t.s.liveUntil, nil
}
