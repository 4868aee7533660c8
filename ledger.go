package greenscore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/greenscore/auth"
	"github.com/xraph/greenscore/clock"
	"github.com/xraph/greenscore/export"
	"github.com/xraph/greenscore/id"
	"github.com/xraph/greenscore/plugin"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/types"
)

// Ledger is the carbon-emission ledger service. Every mutating operation
// authenticates its caller, validates input and then runs one store
// transaction that commits all of its writes or none.
type Ledger struct {
	store      store.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	authorizer auth.Authorizer
	clock      clock.Clock
	ttl        store.TTL

	// pending holds WithPlugin registrations until every option, the
	// logger included, has been applied.
	pending     []plugin.Plugin
	skipMigrate bool
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:      s,
		plugins:    plugin.NewRegistry(),
		logger:     slog.Default(),
		authorizer: auth.ContextAuthorizer{},
		clock:      clock.System{},
		ttl:        store.DefaultTTL(),
	}

	for _, opt := range opts {
		opt(l)
	}
	for _, p := range l.pending {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
	l.pending = nil

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin. Registration happens after all options
// are applied, so it is logged through the logger given by WithLogger
// regardless of option order.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		l.pending = append(l.pending, p)
	}
}

// WithAuthorizer replaces the default context-based authorizer.
func WithAuthorizer(a auth.Authorizer) Option {
	return func(l *Ledger) {
		l.authorizer = a
	}
}

// WithClock sets the source of ledger timestamps.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithTTL sets the lifetime extension policy applied after each write.
func WithTTL(ttl store.TTL) Option {
	return func(l *Ledger) {
		l.ttl = ttl
	}
}

// WithoutMigrate makes Start skip store migration, for schemas managed
// out of band.
func WithoutMigrate() Option {
	return func(l *Ledger) { l.skipMigrate = true }
}

// Start migrates the store and initialises plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if !l.skipMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return err
		}
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("greenscore ledger started",
		"ttl_threshold", l.ttl.Threshold,
		"ttl_extend_to", l.ttl.ExtendTo,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop notifies plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Ping checks the store connection.
func (l *Ledger) Ping(ctx context.Context) error { return l.store.Ping(ctx) }

// ──────────────────────────────────────────────────
// Mutating operations
// ──────────────────────────────────────────────────

// RegisterCarbonRecord stores a new unverified emission claim for an
// entity and returns its ID. IDs are assigned sequentially from 1.
func (l *Ledger) RegisterCarbonRecord(
	ctx context.Context,
	submitter types.Address,
	entityName string,
	entityType record.EntityType,
	emission types.Emission,
) (uint64, error) {
	if err := l.requireAuth(ctx, submitter); err != nil {
		return 0, l.fail(ctx, plugin.OpRegister, submitter, 0, err)
	}
	if emission.IsNegative() {
		return 0, l.fail(ctx, plugin.OpRegister, submitter, 0,
			invalid("carbon_emission", ErrNegativeEmission, "got %s", emission))
	}
	if !entityType.Valid() {
		return 0, l.fail(ctx, plugin.OpRegister, submitter, 0,
			invalid("entity_type", ErrInvalidEntityType, "got %q", entityType))
	}

	var created *record.Record
	err := l.store.Update(ctx, func(tx store.Tx) error {
		count, err := tx.RecordCount(ctx)
		if err != nil {
			return err
		}
		now := l.clock.Timestamp()

		r := &record.Record{
			EntityID:           count + 1,
			EntityName:         entityName,
			EntityType:         entityType,
			CarbonEmission:     emission,
			VerificationStatus: false,
			Timestamp:          now,
		}

		st, err := loadStats(ctx, tx)
		if err != nil {
			return err
		}
		st.TotalRecords++
		if st.TotalEmissionsTracked, err = st.TotalEmissionsTracked.Add(emission); err != nil {
			return overflow("total_emissions_tracked", err)
		}
		if entityType == record.EntityCompany {
			st.CompanyCount++
		} else {
			st.ProductCount++
		}

		if err := tx.PutRecord(ctx, r); err != nil {
			return err
		}
		if err := tx.PutStats(ctx, st); err != nil {
			return err
		}
		if err := tx.SetRecordCount(ctx, r.EntityID); err != nil {
			return err
		}
		if err := tx.ExtendTTL(ctx, l.ttl, now); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return 0, l.fail(ctx, plugin.OpRegister, submitter, 0, err)
	}

	l.logger.Info("carbon record created",
		"entity_id", created.EntityID,
		"entity_type", string(created.EntityType),
		"emission", created.CarbonEmission.String(),
		"principal", submitter.String(),
	)
	l.plugins.EmitRecordRegistered(ctx, &plugin.RecordEvent{
		ID:        id.NewEventID(),
		Operation: plugin.OpRegister,
		Principal: submitter,
		Record:    created.Clone(),
	})

	return created.EntityID, nil
}

// VerifyCarbonRecord marks an existing, unverified record as verified and
// returns the record as committed. Any authenticated address may verify
// any record.
func (l *Ledger) VerifyCarbonRecord(ctx context.Context, verifier types.Address, entityID uint64) (*record.Record, error) {
	if err := l.requireAuth(ctx, verifier); err != nil {
		return nil, l.fail(ctx, plugin.OpVerify, verifier, entityID, err)
	}

	var verified *record.Record
	err := l.store.Update(ctx, func(tx store.Tx) error {
		r, err := tx.GetRecord(ctx, entityID)
		if err != nil {
			return err
		}
		if r.VerificationStatus {
			return invalid("verification_status", ErrAlreadyVerified, "record %d", entityID)
		}

		st, err := loadStats(ctx, tx)
		if err != nil {
			return err
		}
		r.VerificationStatus = true
		st.VerifiedRecords++

		if err := tx.PutRecord(ctx, r); err != nil {
			return err
		}
		if err := tx.PutStats(ctx, st); err != nil {
			return err
		}
		if err := tx.ExtendTTL(ctx, l.ttl, l.clock.Timestamp()); err != nil {
			return err
		}
		verified = r
		return nil
	})
	if err != nil {
		return nil, l.fail(ctx, plugin.OpVerify, verifier, entityID, err)
	}

	l.logger.Info("carbon record verified",
		"entity_id", entityID,
		"principal", verifier.String(),
	)
	l.plugins.EmitRecordVerified(ctx, &plugin.RecordEvent{
		ID:        id.NewEventID(),
		Operation: plugin.OpVerify,
		Principal: verifier,
		Record:    verified.Clone(),
	})

	return verified, nil
}

// UpdateCarbonEmission replaces a record's emission value, restamps it and
// resets its verification. It returns the record as committed. Any
// authenticated address may update any record.
func (l *Ledger) UpdateCarbonEmission(
	ctx context.Context,
	updater types.Address,
	entityID uint64,
	newEmission types.Emission,
) (*record.Record, error) {
	if err := l.requireAuth(ctx, updater); err != nil {
		return nil, l.fail(ctx, plugin.OpUpdate, updater, entityID, err)
	}
	if newEmission.IsNegative() {
		return nil, l.fail(ctx, plugin.OpUpdate, updater, entityID,
			invalid("carbon_emission", ErrNegativeEmission, "got %s", newEmission))
	}

	var (
		updated     *record.Record
		previous    types.Emission
		wasVerified bool
	)
	err := l.store.Update(ctx, func(tx store.Tx) error {
		r, err := tx.GetRecord(ctx, entityID)
		if err != nil {
			return err
		}
		previous, wasVerified = r.CarbonEmission, r.VerificationStatus

		// Both values lie in [0, 2^127-1], so the difference cannot overflow.
		delta, err := newEmission.Sub(previous)
		if err != nil {
			return overflow("carbon_emission", err)
		}

		st, err := loadStats(ctx, tx)
		if err != nil {
			return err
		}
		if st.TotalEmissionsTracked, err = st.TotalEmissionsTracked.Add(delta); err != nil {
			return overflow("total_emissions_tracked", err)
		}
		if wasVerified {
			if st.VerifiedRecords == 0 {
				l.logger.Warn("verified record count already zero; stats have drifted from records",
					"entity_id", entityID,
				)
			} else {
				st.VerifiedRecords--
			}
		}

		now := l.clock.Timestamp()
		r.CarbonEmission = newEmission
		r.Timestamp = now
		r.VerificationStatus = false

		if err := tx.PutRecord(ctx, r); err != nil {
			return err
		}
		if err := tx.PutStats(ctx, st); err != nil {
			return err
		}
		if err := tx.ExtendTTL(ctx, l.ttl, now); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, l.fail(ctx, plugin.OpUpdate, updater, entityID, err)
	}

	l.logger.Info("carbon record updated",
		"entity_id", entityID,
		"emission", newEmission.String(),
		"previous", previous.String(),
		"was_verified", wasVerified,
		"principal", updater.String(),
	)
	l.plugins.EmitEmissionUpdated(ctx, &plugin.RecordEvent{
		ID:          id.NewEventID(),
		Operation:   plugin.OpUpdate,
		Principal:   updater,
		Record:      updated.Clone(),
		Previous:    previous,
		WasVerified: wasVerified,
	})

	return updated, nil
}

// ──────────────────────────────────────────────────
// Read operations
// ──────────────────────────────────────────────────

// GetCarbonRecord returns the record stored under entityID, or the
// record.NotFound sentinel when there is none. Only backend failures are
// returned as errors.
func (l *Ledger) GetCarbonRecord(ctx context.Context, entityID uint64) (*record.Record, error) {
	r, err := l.LookupCarbonRecord(ctx, entityID)
	if errors.Is(err, ErrRecordNotFound) {
		return record.NotFound(), nil
	}
	return r, err
}

// LookupCarbonRecord returns the record stored under entityID or
// ErrRecordNotFound.
func (l *Ledger) LookupCarbonRecord(ctx context.Context, entityID uint64) (*record.Record, error) {
	var r *record.Record
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.GetRecord(ctx, entityID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetPlatformStats returns the stored aggregate stats, or all-zero stats
// before the first record is registered.
func (l *Ledger) GetPlatformStats(ctx context.Context) (*stats.Stats, error) {
	var st *stats.Stats
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		st, err = loadStats(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ListCarbonRecords returns records ordered by entity ID.
func (l *Ledger) ListCarbonRecords(ctx context.Context, opts record.ListOpts) ([]*record.Record, error) {
	var records []*record.Record
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		records, err = tx.ListRecords(ctx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReconcileReport compares the incrementally maintained stats with a full
// recompute over all records.
type ReconcileReport struct {
	Stored     *stats.Stats `json:"stored"`
	Recomputed *stats.Stats `json:"recomputed"`
	Consistent bool         `json:"consistent"`
}

// Reconcile recomputes stats from every record and reports drift. It never
// writes.
func (l *Ledger) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	var report ReconcileReport
	err := l.store.View(ctx, func(tx store.Tx) error {
		records, err := tx.ListRecords(ctx, record.ListOpts{})
		if err != nil {
			return err
		}
		if report.Stored, err = loadStats(ctx, tx); err != nil {
			return err
		}
		if report.Recomputed, err = stats.Recompute(records); err != nil {
			return overflow("total_emissions_tracked", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Consistent = report.Stored.Equal(report.Recomputed)
	if !report.Consistent {
		l.logger.Warn("platform stats drift detected",
			"stored_total_records", report.Stored.TotalRecords,
			"recomputed_total_records", report.Recomputed.TotalRecords,
			"stored_emissions", report.Stored.TotalEmissionsTracked.String(),
			"recomputed_emissions", report.Recomputed.TotalEmissionsTracked.String(),
		)
	}
	return &report, nil
}

// Snapshot captures every record and the stored stats in one read
// transaction.
func (l *Ledger) Snapshot(ctx context.Context) (*export.Snapshot, error) {
	snap := &export.Snapshot{
		Version: export.FormatVersion,
		ID:      id.NewSnapshotID(),
		TakenAt: l.clock.Timestamp(),
	}
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		if snap.RecordCount, err = tx.RecordCount(ctx); err != nil {
			return err
		}
		if snap.Records, err = tx.ListRecords(ctx, record.ListOpts{}); err != nil {
			return err
		}
		if snap.Stats, err = loadStats(ctx, tx); err != nil {
			return err
		}
		snap.LiveUntil, err = tx.LiveUntil(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (l *Ledger) requireAuth(ctx context.Context, addr types.Address) error {
	if err := l.authorizer.RequireAuth(ctx, addr); err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return nil
}

// loadStats returns the stored stats or zero defaults.
func loadStats(ctx context.Context, tx store.Tx) (*stats.Stats, error) {
	st, err := tx.GetStats(ctx)
	if errors.Is(err, ErrStatsNotFound) {
		return stats.Zero(), nil
	}
	return st, err
}

// fail reports a rejected or failed operation to plugins and returns err.
func (l *Ledger) fail(ctx context.Context, op string, principal types.Address, entityID uint64, err error) error {
	kind := failureKind(err)
	level := slog.LevelDebug
	if kind == plugin.KindStore {
		level = slog.LevelError
	}
	l.logger.Log(ctx, level, "carbon record operation failed",
		"operation", op,
		"entity_id", entityID,
		"principal", principal.String(),
		"kind", kind,
		"error", err,
	)

	l.plugins.EmitOperationFailed(ctx, &plugin.FailureEvent{
		ID:        id.NewEventID(),
		Operation: op,
		Principal: principal,
		EntityID:  entityID,
		Kind:      kind,
		Err:       err,
	})
	return err
}

func failureKind(err error) string {
	switch {
	case IsAuthError(err):
		return plugin.KindAuth
	case errors.Is(err, ErrEmissionOverflow):
		return plugin.KindOverflow
	case IsNotFound(err):
		return plugin.KindNotFound
	case IsValidationError(err):
		return plugin.KindValidation
	default:
		return plugin.KindStore
	}
}
