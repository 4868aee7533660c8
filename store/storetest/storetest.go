// Package storetest is a conformance suite shared by every store.Store
// backend. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/auth"
	"github.com/xraph/greenscore/clock"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/types"
)

// Factory returns a fresh, migrated, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.Store

// Run executes the full suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Empty", testEmpty},
		{"Commit", testCommit},
		{"Rollback", testRollback},
		{"ReadOnlyView", testReadOnlyView},
		{"ReadYourWrites", testReadYourWrites},
		{"LargeEmissions", testLargeEmissions},
		{"List", testList},
		{"TTL", testTTL},
		{"LedgerScenario", testLedgerScenario},
		{"ConcurrentRegistrations", testConcurrentRegistrations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

func mustUpdate(t *testing.T, s store.Store, fn func(tx store.Tx) error) {
	t.Helper()
	if err := s.Update(context.Background(), fn); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func mustView(t *testing.T, s store.Store, fn func(tx store.Tx) error) {
	t.Helper()
	if err := s.View(context.Background(), fn); err != nil {
		t.Fatalf("View: %v", err)
	}
}

func sample(id uint64, typ record.EntityType, kg int64) *record.Record {
	return &record.Record{
		EntityID:       id,
		EntityName:     fmt.Sprintf("entity-%d", id),
		EntityType:     typ,
		CarbonEmission: types.KgCO2(kg),
		Timestamp:      1_700_000_000 + id,
	}
}

func equalRecord(a, b *record.Record) bool {
	return a.EntityID == b.EntityID &&
		a.EntityName == b.EntityName &&
		a.EntityType == b.EntityType &&
		a.CarbonEmission.Equal(b.CarbonEmission) &&
		a.VerificationStatus == b.VerificationStatus &&
		a.Timestamp == b.Timestamp
}

func testEmpty(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mustView(t, s, func(tx store.Tx) error {
		if n, err := tx.RecordCount(ctx); err != nil || n != 0 {
			t.Errorf("RecordCount: got %d, %v; want 0, nil", n, err)
		}
		if _, err := tx.GetRecord(ctx, 1); !errors.Is(err, greenscore.ErrRecordNotFound) {
			t.Errorf("GetRecord: got %v, want ErrRecordNotFound", err)
		}
		if _, err := tx.GetStats(ctx); !errors.Is(err, greenscore.ErrStatsNotFound) {
			t.Errorf("GetStats: got %v, want ErrStatsNotFound", err)
		}
		if list, err := tx.ListRecords(ctx, record.ListOpts{}); err != nil || len(list) != 0 {
			t.Errorf("ListRecords: got %d records, %v", len(list), err)
		}
		if lu, err := tx.LiveUntil(ctx); err != nil || lu != 0 {
			t.Errorf("LiveUntil: got %d, %v", lu, err)
		}
		return nil
	})
}

func testCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	rec := sample(1, record.EntityCompany, 100)
	st := &stats.Stats{TotalRecords: 1, TotalEmissionsTracked: types.KgCO2(100), CompanyCount: 1}

	mustUpdate(t, s, func(tx store.Tx) error {
		if err := tx.PutRecord(ctx, rec); err != nil {
			return err
		}
		if err := tx.PutStats(ctx, st); err != nil {
			return err
		}
		return tx.SetRecordCount(ctx, 1)
	})

	mustView(t, s, func(tx store.Tx) error {
		n, err := tx.RecordCount(ctx)
		if err != nil || n != 1 {
			t.Errorf("RecordCount: got %d, %v", n, err)
		}
		got, err := tx.GetRecord(ctx, 1)
		if err != nil {
			t.Fatalf("GetRecord: %v", err)
		}
		if !equalRecord(got, rec) {
			t.Errorf("GetRecord: got %+v, want %+v", got, rec)
		}
		gotStats, err := tx.GetStats(ctx)
		if err != nil {
			t.Fatalf("GetStats: %v", err)
		}
		if !gotStats.Equal(st) {
			t.Errorf("GetStats: got %+v, want %+v", gotStats, st)
		}
		return nil
	})

	// Overwrite in place.
	rec.VerificationStatus = true
	rec.CarbonEmission = types.KgCO2(5)
	mustUpdate(t, s, func(tx store.Tx) error { return tx.PutRecord(ctx, rec) })
	mustView(t, s, func(tx store.Tx) error {
		got, err := tx.GetRecord(ctx, 1)
		if err != nil {
			return err
		}
		if !equalRecord(got, rec) {
			t.Errorf("after overwrite: got %+v, want %+v", got, rec)
		}
		return nil
	})
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutRecord(ctx, sample(1, record.EntityProduct, 7)); err != nil {
			return err
		}
		if err := tx.PutStats(ctx, &stats.Stats{TotalRecords: 1}); err != nil {
			return err
		}
		if err := tx.SetRecordCount(ctx, 1); err != nil {
			return err
		}
		if err := tx.ExtendTTL(ctx, store.DefaultTTL(), 1000); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update: got %v, want boom", err)
	}

	mustView(t, s, func(tx store.Tx) error {
		if n, _ := tx.RecordCount(ctx); n != 0 {
			t.Errorf("RecordCount after rollback: got %d", n)
		}
		if _, err := tx.GetRecord(ctx, 1); !errors.Is(err, greenscore.ErrRecordNotFound) {
			t.Errorf("GetRecord after rollback: %v", err)
		}
		if _, err := tx.GetStats(ctx); !errors.Is(err, greenscore.ErrStatsNotFound) {
			t.Errorf("GetStats after rollback: %v", err)
		}
		if lu, _ := tx.LiveUntil(ctx); lu != 0 {
			t.Errorf("LiveUntil after rollback: got %d", lu)
		}
		return nil
	})
}

func testReadOnlyView(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustView(t, s, func(tx store.Tx) error {
		checks := map[string]error{
			"SetRecordCount": tx.SetRecordCount(ctx, 1),
			"PutRecord":      tx.PutRecord(ctx, sample(1, record.EntityCompany, 1)),
			"PutStats":       tx.PutStats(ctx, stats.Zero()),
			"ExtendTTL":      tx.ExtendTTL(ctx, store.DefaultTTL(), 1),
		}
		for name, err := range checks {
			if !errors.Is(err, greenscore.ErrReadOnly) {
				t.Errorf("%s in View: got %v, want ErrReadOnly", name, err)
			}
		}
		return nil
	})
}

func testReadYourWrites(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustUpdate(t, s, func(tx store.Tx) error {
		if err := tx.SetRecordCount(ctx, 2); err != nil {
			return err
		}
		if err := tx.PutRecord(ctx, sample(1, record.EntityCompany, 1)); err != nil {
			return err
		}
		if err := tx.PutRecord(ctx, sample(2, record.EntityProduct, 2)); err != nil {
			return err
		}
		if err := tx.PutStats(ctx, &stats.Stats{TotalRecords: 2}); err != nil {
			return err
		}

		if n, err := tx.RecordCount(ctx); err != nil || n != 2 {
			t.Errorf("staged RecordCount: got %d, %v", n, err)
		}
		if r, err := tx.GetRecord(ctx, 2); err != nil || r.EntityType != record.EntityProduct {
			t.Errorf("staged GetRecord: got %+v, %v", r, err)
		}
		if st, err := tx.GetStats(ctx); err != nil || st.TotalRecords != 2 {
			t.Errorf("staged GetStats: got %+v, %v", st, err)
		}
		if list, err := tx.ListRecords(ctx, record.ListOpts{}); err != nil || len(list) != 2 {
			t.Errorf("staged ListRecords: got %d, %v", len(list), err)
		}
		return nil
	})
}

func testLargeEmissions(t *testing.T, s store.Store) {
	ctx := context.Background()
	huge := types.MaxEmission()
	rec := sample(1, record.EntityCompany, 0)
	rec.CarbonEmission = huge
	st := &stats.Stats{TotalRecords: 1, TotalEmissionsTracked: huge, CompanyCount: 1}

	mustUpdate(t, s, func(tx store.Tx) error {
		if err := tx.PutRecord(ctx, rec); err != nil {
			return err
		}
		return tx.PutStats(ctx, st)
	})
	mustView(t, s, func(tx store.Tx) error {
		got, err := tx.GetRecord(ctx, 1)
		if err != nil {
			return err
		}
		if !got.CarbonEmission.Equal(huge) {
			t.Errorf("record emission: got %s, want %s", got.CarbonEmission, huge)
		}
		gotStats, err := tx.GetStats(ctx)
		if err != nil {
			return err
		}
		if !gotStats.TotalEmissionsTracked.Equal(huge) {
			t.Errorf("stats emission: got %s, want %s", gotStats.TotalEmissionsTracked, huge)
		}
		return nil
	})
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustUpdate(t, s, func(tx store.Tx) error {
		// Insert out of order to check ordering.
		for _, id := range []uint64{3, 1, 5, 2, 4} {
			typ := record.EntityCompany
			if id%2 == 0 {
				typ = record.EntityProduct
			}
			r := sample(id, typ, int64(id))
			r.VerificationStatus = id <= 2
			if err := tx.PutRecord(ctx, r); err != nil {
				return err
			}
		}
		return tx.SetRecordCount(ctx, 5)
	})

	yes, no := true, false
	tests := []struct {
		name string
		opts record.ListOpts
		want []uint64
	}{
		{"all", record.ListOpts{}, []uint64{1, 2, 3, 4, 5}},
		{"companies", record.ListOpts{EntityType: record.EntityCompany}, []uint64{1, 3, 5}},
		{"products", record.ListOpts{EntityType: record.EntityProduct}, []uint64{2, 4}},
		{"verified", record.ListOpts{Verified: &yes}, []uint64{1, 2}},
		{"unverified companies", record.ListOpts{EntityType: record.EntityCompany, Verified: &no}, []uint64{3, 5}},
		{"limit", record.ListOpts{Limit: 2}, []uint64{1, 2}},
		{"offset", record.ListOpts{Offset: 3}, []uint64{4, 5}},
		{"offset and limit", record.ListOpts{Offset: 1, Limit: 2}, []uint64{2, 3}},
		{"offset past end", record.ListOpts{Offset: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustView(t, s, func(tx store.Tx) error {
				list, err := tx.ListRecords(ctx, tt.opts)
				if err != nil {
					return err
				}
				got := make([]uint64, 0, len(list))
				for _, r := range list {
					got = append(got, r.EntityID)
				}
				if fmt.Sprint(got) != fmt.Sprint(append([]uint64{}, tt.want...)) {
					t.Errorf("got %v, want %v", got, tt.want)
				}
				return nil
			})
		})
	}
}

func testTTL(t *testing.T, s store.Store) {
	ctx := context.Background()
	policy := store.TTL{Threshold: 10, ExtendTo: 100, LedgerInterval: time.Second}

	steps := []struct {
		now  uint64
		want uint64
	}{
		{1000, 1100}, // first extension
		{1050, 1100}, // more than Threshold ledgers remain
		{1095, 1195}, // within Threshold: extend again
	}
	for _, step := range steps {
		mustUpdate(t, s, func(tx store.Tx) error {
			// Backends with native expiry need at least one entry to extend.
			if err := tx.SetRecordCount(ctx, 0); err != nil {
				return err
			}
			return tx.ExtendTTL(ctx, policy, step.now)
		})
		mustView(t, s, func(tx store.Tx) error {
			got, err := tx.LiveUntil(ctx)
			if err != nil {
				return err
			}
			if got != step.want {
				t.Errorf("now=%d: LiveUntil got %d, want %d", step.now, got, step.want)
			}
			return nil
		})
	}
}

// testLedgerScenario drives the full ledger against the backend.
func testLedgerScenario(t *testing.T, s store.Store) {
	ctx := context.Background()
	clk := clock.NewManual(1_700_000_000)
	l := greenscore.New(s, greenscore.WithClock(clk))
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	alice := types.Address("GALICE")
	ctx = auth.WithPrincipal(ctx, alice)

	acme, err := l.RegisterCarbonRecord(ctx, alice, "Acme", record.EntityCompany, types.KgCO2(100))
	if err != nil {
		t.Fatalf("register Acme: %v", err)
	}
	widget, err := l.RegisterCarbonRecord(ctx, alice, "Widget", record.EntityProduct, types.KgCO2(50))
	if err != nil {
		t.Fatalf("register Widget: %v", err)
	}
	if acme != 1 || widget != 2 {
		t.Fatalf("ids: got %d, %d; want 1, 2", acme, widget)
	}

	if _, err := l.VerifyCarbonRecord(ctx, alice, acme); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := l.VerifyCarbonRecord(ctx, alice, acme); !errors.Is(err, greenscore.ErrAlreadyVerified) {
		t.Fatalf("second verify: got %v, want ErrAlreadyVerified", err)
	}

	clk.Advance(10 * time.Second)
	if _, err := l.UpdateCarbonEmission(ctx, alice, acme, types.KgCO2(80)); err != nil {
		t.Fatalf("update: %v", err)
	}

	r, err := l.GetCarbonRecord(ctx, acme)
	if err != nil {
		t.Fatal(err)
	}
	if r.VerificationStatus || !r.CarbonEmission.Equal(types.KgCO2(80)) || r.Timestamp != 1_700_000_010 {
		t.Errorf("updated record: %+v", r)
	}

	st, err := l.GetPlatformStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := &stats.Stats{
		TotalRecords:          2,
		VerifiedRecords:       0,
		TotalEmissionsTracked: types.KgCO2(130),
		CompanyCount:          1,
		ProductCount:          1,
	}
	if !st.Equal(want) {
		t.Errorf("stats: got %+v, want %+v", st, want)
	}

	report, err := l.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Consistent {
		t.Errorf("reconcile: stored %+v, recomputed %+v", report.Stored, report.Recomputed)
	}

	missing, err := l.GetCarbonRecord(ctx, 99)
	if err != nil || !missing.IsNotFound() {
		t.Errorf("missing record: got %+v, %v", missing, err)
	}
}

func testConcurrentRegistrations(t *testing.T, s store.Store) {
	const (
		workers   = 4
		perWorker = 5
	)
	l := greenscore.New(s, greenscore.WithClock(clock.NewManual(1)))
	alice := types.Address("GALICE")
	ctx := auth.WithPrincipal(context.Background(), alice)

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				var err error
				for attempt := 0; attempt < 10; attempt++ {
					_, err = l.RegisterCarbonRecord(ctx, alice, "c", record.EntityCompany, types.KgCO2(1))
					if !greenscore.IsRetryable(err) {
						break
					}
				}
				if err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("register: %v", err)
	}

	records, err := l.ListCarbonRecords(ctx, record.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != workers*perWorker {
		t.Fatalf("records: got %d, want %d", len(records), workers*perWorker)
	}
	for i, r := range records {
		if r.EntityID != uint64(i+1) {
			t.Errorf("record %d has id %d", i, r.EntityID)
		}
	}

	report, err := l.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Consistent || report.Stored.TotalRecords != workers*perWorker {
		t.Errorf("reconcile after concurrent writes: %+v vs %+v", report.Stored, report.Recomputed)
	}
}
