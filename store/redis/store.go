// Package redis implements store.Store on a single Redis hash. Updates use
// WATCH/MULTI/EXEC and are retried when another writer gets in first.
// LIVE_UNTIL is kept as a hash field; a Redis key expiry is only set with
// WithExpiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/store"
)

// Hash field names.
const (
	fieldRecordCount = "REC_CNT"
	fieldStats       = "STATS"
	fieldLiveUntil   = "LIVE_UNTIL"
	recordPrefix     = "rec:"
)

// DefaultMaxRetries bounds optimistic retries per Update.
const DefaultMaxRetries = 50

var _ store.Store = (*Store)(nil)

// Store implements store.Store on Redis.
type Store struct {
	client     goredis.UniversalClient
	key        string
	owned      bool
	maxRetries int
	expiry     bool
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithPrefix namespaces the instance hash as "<prefix>:instance".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.key = prefix + ":instance" }
}

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(s *Store) { s.maxRetries = n }
}

// WithExpiry makes every TTL extension also EXPIRE the instance hash for
// the extension window. Once the key expires the whole instance is gone,
// REC_CNT included, so entity IDs start again from 1.
func WithExpiry() Option {
	return func(s *Store) { s.expiry = true }
}

// Connect creates a client from a redis:// URL and pings it.
func Connect(ctx context.Context, url string, opts ...Option) (*Store, error) {
	clientOpts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("greenscore/redis: parse url: %w", err)
	}
	client := goredis.NewClient(clientOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("greenscore/redis: ping %s: %w", clientOpts.Addr, err)
	}

	s := New(client, opts...)
	s.owned = true
	return s, nil
}

// New wraps an existing client. Close does not close a client the store
// did not create.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:     client,
		key:        "greenscore:instance",
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the name of the instance hash.
func (s *Store) Key() string { return s.key }

// Migrate is a no-op; the hash is created on first write.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.client.Ping(ctx).Err())
}

// Close closes the client when the store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	for attempt := range s.maxRetries {
		err := s.client.Watch(ctx, func(rtx *goredis.Tx) error {
			t := &tx{
				get:      func(ctx context.Context, field string) (string, error) { return rtx.HGet(ctx, s.key, field).Result() },
				all:      func(ctx context.Context) (map[string]string, error) { return rtx.HGetAll(ctx, s.key).Result() },
				writable: true,
				expiry:   s.expiry,
				staged:   make(map[string]string),
			}
			if err := fn(t); err != nil {
				return err
			}
			if len(t.staged) == 0 {
				return nil
			}
			args := make([]any, 0, 2*len(t.staged))
			for field, value := range t.staged {
				args = append(args, field, value)
			}
			_, err := rtx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.HSet(ctx, s.key, args...)
				if t.expire > 0 {
					pipe.Expire(ctx, s.key, t.expire)
				}
				return nil
			})
			return err
		}, s.key)

		if !errors.Is(err, goredis.TxFailedErr) {
			return mapErr(err)
		}
		s.logger.Debug("redis update conflict, retrying", "key", s.key, "attempt", attempt+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: greenscore/redis: %d conflicting attempts", greenscore.ErrTransactionFailed, s.maxRetries)
}

// View implements store.Store. It reads the whole hash once so every read
// in fn sees the same state.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	snapshot, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return mapErr(err)
	}
	t := &tx{
		get: func(_ context.Context, field string) (string, error) {
			v, ok := snapshot[field]
			if !ok {
				return "", goredis.Nil
			}
			return v, nil
		},
		all: func(context.Context) (map[string]string, error) { return snapshot, nil },
	}
	return fn(t)
}

func mapErr(err error) error {
	if errors.Is(err, goredis.ErrClosed) {
		return greenscore.ErrStoreClosed
	}
	return err
}

// tx buffers writes until EXEC. Reads see staged values first.
type tx struct {
	get      func(ctx context.Context, field string) (string, error)
	all      func(ctx context.Context) (map[string]string, error)
	writable bool
	expiry   bool
	staged   map[string]string
	expire   time.Duration
}

func (t *tx) read(ctx context.Context, field string) (string, bool, error) {
	if v, ok := t.staged[field]; ok {
		return v, true, nil
	}
	v, err := t.get(ctx, field)
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, mapErr(err)
	}
	return v, true, nil
}

func (t *tx) readUint(ctx context.Context, field string) (uint64, error) {
	v, ok, err := t.read(ctx, field)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("greenscore/redis: field %s: %w", field, err)
	}
	return n, nil
}

func (t *tx) write(field, value string) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	t.staged[field] = value
	return nil
}

func recordField(id uint64) string {
	return recordPrefix + strconv.FormatUint(id, 10)
}

func (t *tx) RecordCount(ctx context.Context) (uint64, error) {
	return t.readUint(ctx, fieldRecordCount)
}

func (t *tx) SetRecordCount(_ context.Context, n uint64) error {
	return t.write(fieldRecordCount, strconv.FormatUint(n, 10))
}

func (t *tx) GetRecord(ctx context.Context, entityID uint64) (*record.Record, error) {
	v, ok, err := t.read(ctx, recordField(entityID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, greenscore.ErrRecordNotFound
	}
	var r record.Record
	if err := json.Unmarshal([]byte(v), &r); err != nil {
		return nil, fmt.Errorf("greenscore/redis: decode record %d: %w", entityID, err)
	}
	return &r, nil
}

func (t *tx) PutRecord(_ context.Context, r *record.Record) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("greenscore/redis: encode record %d: %w", r.EntityID, err)
	}
	return t.write(recordField(r.EntityID), string(data))
}

func (t *tx) ListRecords(ctx context.Context, opts record.ListOpts) ([]*record.Record, error) {
	fields, err := t.all(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	merged := maps.Clone(fields)
	if merged == nil {
		merged = make(map[string]string)
	}
	maps.Copy(merged, t.staged)

	var out []*record.Record
	for field, v := range merged {
		if !strings.HasPrefix(field, recordPrefix) {
			continue
		}
		var r record.Record
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("greenscore/redis: decode %s: %w", field, err)
		}
		if opts.Match(&r) {
			out = append(out, &r)
		}
	}
	slices.SortFunc(out, func(a, b *record.Record) int {
		switch {
		case a.EntityID < b.EntityID:
			return -1
		case a.EntityID > b.EntityID:
			return 1
		}
		return 0
	})
	return record.Page(out, opts), nil
}

func (t *tx) GetStats(ctx context.Context) (*stats.Stats, error) {
	v, ok, err := t.read(ctx, fieldStats)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, greenscore.ErrStatsNotFound
	}
	var st stats.Stats
	if err := json.Unmarshal([]byte(v), &st); err != nil {
		return nil, fmt.Errorf("greenscore/redis: decode stats: %w", err)
	}
	return &st, nil
}

func (t *tx) PutStats(_ context.Context, st *stats.Stats) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("greenscore/redis: encode stats: %w", err)
	}
	return t.write(fieldStats, string(data))
}

func (t *tx) ExtendTTL(ctx context.Context, ttl store.TTL, now uint64) error {
	if !t.writable {
		return greenscore.ErrReadOnly
	}
	current, err := t.readUint(ctx, fieldLiveUntil)
	if err != nil {
		return err
	}
	next := ttl.Extend(current, now)
	if next == current {
		return nil
	}
	if err := t.write(fieldLiveUntil, strconv.FormatUint(next, 10)); err != nil {
		return err
	}
	// A zero window would delete the hash on EXPIRE.
	if w := ttl.Window(); t.expiry && w > 0 {
		t.expire = w
	}
	return nil
}

func (t *tx) LiveUntil(ctx context.Context) (uint64, error) {
	return t.readUint(ctx, fieldLiveUntil)
}
