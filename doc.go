// Package greenscore provides a carbon-emission ledger for Go applications.
//
// Greenscore is designed as a library, not a service. Import it directly
// into your Go application, or run cmd/greenscored for an HTTP front end.
// It provides:
//
//   - Registration of emission claims for companies and products
//   - A verification workflow with automatic reset on every change
//   - Platform-wide statistics maintained in the same transaction as each write
//   - Pluggable storage (memory, SQLite, PostgreSQL, MongoDB, Redis)
//   - Lifecycle hooks for metrics and audit trails
//   - Point-in-time snapshots exportable to disk or S3
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/xraph/greenscore"
//	    "github.com/xraph/greenscore/auth"
//	    "github.com/xraph/greenscore/store/memory"
//	)
//
//	l := greenscore.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// Mutating calls name the address acting on the ledger. The default
// authorizer accepts the call when that address is the principal placed in
// the context by the transport:
//
//	ctx = auth.WithPrincipal(ctx, "GA...SUBMITTER")
//	id, err := l.RegisterCarbonRecord(ctx, "GA...SUBMITTER",
//	    "Acme Corp", greenscore.Company, greenscore.KgCO2(1200))
//
//	rec, err := l.VerifyCarbonRecord(ctx, "GA...SUBMITTER", id)
//	rec, err = l.UpdateCarbonEmission(ctx, "GA...SUBMITTER", id, greenscore.KgCO2(900))
//
// # Reads
//
// GetCarbonRecord never fails for a missing record; it returns a sentinel
// whose EntityID is 0 and whose name and type are "Not_Found". Use
// LookupCarbonRecord for an explicit ErrRecordNotFound. GetPlatformStats
// returns all-zero stats before the first registration.
//
// # Emissions
//
// Emission amounts are whole kilograms of CO2 with the range of a signed
// 128-bit integer. Negative inputs are rejected; totals that leave the range
// fail with ErrEmissionOverflow and leave the ledger unchanged.
//
// # Storage lifetime
//
// After every write the ledger extends the lifetime of all persisted
// entries (store.TTL, 5000 ledgers by default). Backends with native
// expiry (Redis) map ledgers to wall-clock time.
package greenscore
