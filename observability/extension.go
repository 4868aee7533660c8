// Package observability provides a metrics plugin for greenscore that
// records ledger lifecycle events through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/greenscore/plugin"
	"github.com/xraph/greenscore/record"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnRecordRegistered = (*MetricsExtension)(nil)
	_ plugin.OnRecordVerified   = (*MetricsExtension)(nil)
	_ plugin.OnEmissionUpdated  = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger activity.
// Register it as a Ledger plugin to track registrations, verifications,
// updates and failures.
type MetricsExtension struct {
	// Record metrics
	RecordsRegistered   Counter
	CompaniesRegistered Counter
	ProductsRegistered  Counter
	RecordsVerified     Counter
	EmissionsUpdated    Counter
	VerificationsReset  Counter

	// Emission value metrics (kg CO2)
	RegisteredEmission Histogram
	UpdatedEmission    Histogram

	// Failure metrics
	AuthFailures       Counter
	ValidationFailures Counter
	NotFoundFailures   Counter
	OverflowFailures   Counter
	StoreErrors        Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		RecordsRegistered:   factory.Counter("greenscore.records.registered"),
		CompaniesRegistered: factory.Counter("greenscore.records.registered.company"),
		ProductsRegistered:  factory.Counter("greenscore.records.registered.product"),
		RecordsVerified:     factory.Counter("greenscore.records.verified"),
		EmissionsUpdated:    factory.Counter("greenscore.records.updated"),
		VerificationsReset:  factory.Counter("greenscore.records.verification_reset"),

		RegisteredEmission: factory.Histogram("greenscore.emission.registered_kg"),
		UpdatedEmission:    factory.Histogram("greenscore.emission.updated_kg"),

		AuthFailures:       factory.Counter("greenscore.failures.auth"),
		ValidationFailures: factory.Counter("greenscore.failures.validation"),
		NotFoundFailures:   factory.Counter("greenscore.failures.not_found"),
		OverflowFailures:   factory.Counter("greenscore.failures.overflow"),
		StoreErrors:        factory.Counter("greenscore.failures.store"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnRecordRegistered implements plugin.OnRecordRegistered.
func (m *MetricsExtension) OnRecordRegistered(_ context.Context, ev *plugin.RecordEvent) error {
	m.RecordsRegistered.Inc()
	if ev.Record == nil {
		return nil
	}
	switch ev.Record.EntityType {
	case record.EntityCompany:
		m.CompaniesRegistered.Inc()
	case record.EntityProduct:
		m.ProductsRegistered.Inc()
	}
	m.RegisteredEmission.Observe(ev.Record.CarbonEmission.Float64())
	return nil
}

// OnRecordVerified implements plugin.OnRecordVerified.
func (m *MetricsExtension) OnRecordVerified(_ context.Context, _ *plugin.RecordEvent) error {
	m.RecordsVerified.Inc()
	return nil
}

// OnEmissionUpdated implements plugin.OnEmissionUpdated.
func (m *MetricsExtension) OnEmissionUpdated(_ context.Context, ev *plugin.RecordEvent) error {
	m.EmissionsUpdated.Inc()
	if ev.WasVerified {
		m.VerificationsReset.Inc()
	}
	if ev.Record != nil {
		m.UpdatedEmission.Observe(ev.Record.CarbonEmission.Float64())
	}
	return nil
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (m *MetricsExtension) OnOperationFailed(_ context.Context, ev *plugin.FailureEvent) error {
	switch ev.Kind {
	case plugin.KindAuth:
		m.AuthFailures.Inc()
	case plugin.KindValidation:
		m.ValidationFailures.Inc()
	case plugin.KindNotFound:
		m.NotFoundFailures.Inc()
	case plugin.KindOverflow:
		m.OverflowFailures.Inc()
	default:
		m.StoreErrors.Inc()
	}
	return nil
}
