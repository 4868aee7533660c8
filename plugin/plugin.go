// Package plugin provides an extensible plugin system for greenscore.
// Plugins can hook into ledger lifecycle events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/greenscore/id"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// Operation names reported in events.
const (
	OpRegister = "register"
	OpVerify   = "verify"
	OpUpdate   = "update"
)

// Failure kinds reported in FailureEvent.Kind.
const (
	KindAuth       = "auth"
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindOverflow   = "overflow"
	KindStore      = "store"
)

// RecordEvent describes a committed change to a carbon record.
type RecordEvent struct {
	ID        id.ID          `json:"id"`
	Operation string         `json:"operation"`
	Principal types.Address  `json:"principal"`
	Record    *record.Record `json:"record"`

	// Previous holds the emission before an update. Zero otherwise.
	Previous types.Emission `json:"previous"`

	// WasVerified reports whether an updated record had been verified
	// before the update reset it.
	WasVerified bool `json:"was_verified"`
}

// FailureEvent describes an operation that was rejected or could not commit.
type FailureEvent struct {
	ID        id.ID         `json:"id"`
	Operation string        `json:"operation"`
	Principal types.Address `json:"principal"`
	EntityID  uint64        `json:"entity_id,omitempty"`

	// Kind classifies Err: auth, validation, not_found, overflow or store.
	Kind string `json:"kind"`
	Err  error  `json:"-"`
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts. l is the *greenscore.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger is stopping.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Record hooks
// ──────────────────────────────────────────────────

// OnRecordRegistered is called after a new record is committed.
type OnRecordRegistered interface {
	Plugin
	OnRecordRegistered(ctx context.Context, ev *RecordEvent) error
}

// OnRecordVerified is called after a record is marked verified.
type OnRecordVerified interface {
	Plugin
	OnRecordVerified(ctx context.Context, ev *RecordEvent) error
}

// OnEmissionUpdated is called after a record's emission value changes.
type OnEmissionUpdated interface {
	Plugin
	OnEmissionUpdated(ctx context.Context, ev *RecordEvent) error
}

// OnOperationFailed is called when a mutating operation returns an error.
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, ev *FailureEvent) error
}
