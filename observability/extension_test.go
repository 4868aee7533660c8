package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/greenscore/observability"
	"github.com/xraph/greenscore/plugin"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/types"
)

func TestMetricsExtension(t *testing.T) {
	reg := prometheus.NewRegistry()
	factory := observability.NewPrometheusFactory(reg)
	m := observability.NewMetricsExtension(factory)
	ctx := context.Background()

	company := &record.Record{EntityID: 1, EntityType: record.EntityCompany, CarbonEmission: types.KgCO2(100)}
	product := &record.Record{EntityID: 2, EntityType: record.EntityProduct, CarbonEmission: types.KgCO2(5)}

	_ = m.OnRecordRegistered(ctx, &plugin.RecordEvent{Record: company})
	_ = m.OnRecordRegistered(ctx, &plugin.RecordEvent{Record: product})
	_ = m.OnRecordVerified(ctx, &plugin.RecordEvent{Record: company})
	_ = m.OnEmissionUpdated(ctx, &plugin.RecordEvent{Record: company, WasVerified: true})
	_ = m.OnEmissionUpdated(ctx, &plugin.RecordEvent{Record: product})

	failures := []string{
		plugin.KindAuth, plugin.KindValidation, plugin.KindValidation,
		plugin.KindNotFound, plugin.KindOverflow, plugin.KindStore,
	}
	for _, kind := range failures {
		_ = m.OnOperationFailed(ctx, &plugin.FailureEvent{Kind: kind, Err: errors.New(kind)})
	}

	tests := []struct {
		name string
		c    observability.Counter
		want float64
	}{
		{"registered", m.RecordsRegistered, 2},
		{"companies", m.CompaniesRegistered, 1},
		{"products", m.ProductsRegistered, 1},
		{"verified", m.RecordsVerified, 1},
		{"updated", m.EmissionsUpdated, 2},
		{"reset", m.VerificationsReset, 1},
		{"auth", m.AuthFailures, 1},
		{"validation", m.ValidationFailures, 2},
		{"not found", m.NotFoundFailures, 1},
		{"overflow", m.OverflowFailures, 1},
		{"store", m.StoreErrors, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testutil.ToFloat64(tt.c.(prometheus.Counter))
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(m.RegisteredEmission.(prometheus.Histogram)); n != 1 {
		t.Errorf("registered emission histogram: got %d series, want 1", n)
	}
}

func TestPrometheusFactoryReuse(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := observability.NewPrometheusFactory(reg)
	b := observability.NewPrometheusFactory(reg)

	a.Counter("greenscore.test").Inc()
	b.Counter("greenscore.test").Inc()

	if got := testutil.ToFloat64(a.Counter("greenscore.test").(prometheus.Counter)); got != 2 {
		t.Errorf("shared counter: got %v, want 2", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) != 1 || mfs[0].GetName() != "greenscore_test_total" {
		t.Errorf("unexpected metric families: %v", mfs)
	}
}
