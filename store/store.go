package store

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
)

// Store is the unified storage interface for greenscore. It exposes the
// key-value shaped state (record counter, stats, one entry per record)
// only through transactions, so that every ledger operation commits all
// of its writes together or none of them.
type Store interface {
	// Update runs fn in a read-write transaction. Writes made through tx
	// are committed when fn returns nil and discarded otherwise. Update
	// calls are serialised against each other.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn against a consistent read-only view. Write methods on
	// tx return ErrReadOnly.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of reads and writes available inside a transaction.
type Tx interface {
	record.Store
	stats.Store

	// ExtendTTL keeps every persisted entry alive: when fewer than
	// ttl.Threshold ledgers remain, the lifetime is extended to
	// ttl.ExtendTo ledgers past now.
	ExtendTTL(ctx context.Context, ttl TTL, now uint64) error

	// LiveUntil returns the ledger timestamp the entries are currently
	// kept alive until, 0 if never extended.
	LiveUntil(ctx context.Context) (uint64, error)
}

// TTL is the lifetime extension policy applied after every write,
// expressed in ledgers.
type TTL struct {
	Threshold uint32 `json:"threshold" mapstructure:"threshold" yaml:"threshold"`
	ExtendTo  uint32 `json:"extend_to" mapstructure:"extend_to" yaml:"extend_to"`

	// LedgerInterval converts ledgers to wall-clock time for backends
	// that expire entries on their own (redis).
	LedgerInterval time.Duration `json:"ledger_interval" mapstructure:"ledger_interval" yaml:"ledger_interval"`
}

// DefaultTTL extends all entries by 5000 ledgers of ~5s each.
func DefaultTTL() TTL {
	return TTL{
		Threshold:      5000,
		ExtendTo:       5000,
		LedgerInterval: 5 * time.Second,
	}
}

// Window returns ExtendTo as wall-clock time.
func (t TTL) Window() time.Duration {
	return time.Duration(t.ExtendTo) * t.LedgerInterval
}

// Extend computes the new live-until timestamp (seconds) for an entry
// currently live until liveUntil. It returns liveUntil unchanged when more
// than Threshold ledgers remain.
func (t TTL) Extend(liveUntil, now uint64) uint64 {
	step := uint64(t.LedgerInterval / time.Second)
	if step == 0 {
		step = 1
	}
	threshold := now + uint64(t.Threshold)*step
	if liveUntil >= threshold && liveUntil != 0 {
		return liveUntil
	}
	target := now + uint64(t.ExtendTo)*step
	if target < liveUntil {
		return liveUntil
	}
	return target
}

// ErrReadOnly is returned by write methods of a Tx obtained from View.
var ErrReadOnly = errors.New("greenscore: transaction is read-only")
