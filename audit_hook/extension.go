// Package audithook bridges greenscore ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter, or use
// LogRecorder to write the trail through slog.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/greenscore/id"
	"github.com/xraph/greenscore/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnRecordRegistered = (*Extension)(nil)
	_ plugin.OnRecordVerified   = (*Extension)(nil)
	_ plugin.OnEmissionUpdated  = (*Extension)(nil)
	_ plugin.OnOperationFailed  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	ID         id.ID          `json:"id"`
	EventID    id.ID          `json:"event_id"`
	Actor      string         `json:"actor,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// LogRecorder writes audit events to logger at info level.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, ev *AuditEvent) error {
		attrs := []any{
			"audit_id", ev.ID.String(),
			"event_id", ev.EventID.String(),
			"actor", ev.Actor,
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"outcome", ev.Outcome,
			"severity", ev.Severity,
		}
		if ev.Reason != "" {
			attrs = append(attrs, "reason", ev.Reason)
		}
		if len(ev.Metadata) > 0 {
			attrs = append(attrs, "metadata", ev.Metadata)
		}
		logger.InfoContext(ctx, "audit", attrs...)
		return nil
	})
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnRecordRegistered implements plugin.OnRecordRegistered.
func (e *Extension) OnRecordRegistered(ctx context.Context, ev *plugin.RecordEvent) error {
	return e.record(ctx, ev.ID, string(ev.Principal),
		ActionRecordRegistered, SeverityInfo, OutcomeSuccess,
		ResourceRecord, entityID(ev), CategoryEmissions, nil,
		"entity_name", ev.Record.EntityName,
		"entity_type", string(ev.Record.EntityType),
		"carbon_emission", ev.Record.CarbonEmission.String(),
	)
}

// OnRecordVerified implements plugin.OnRecordVerified.
func (e *Extension) OnRecordVerified(ctx context.Context, ev *plugin.RecordEvent) error {
	return e.record(ctx, ev.ID, string(ev.Principal),
		ActionRecordVerified, SeverityInfo, OutcomeSuccess,
		ResourceRecord, entityID(ev), CategoryVerification, nil,
		"carbon_emission", ev.Record.CarbonEmission.String(),
	)
}

// OnEmissionUpdated implements plugin.OnEmissionUpdated. An update that
// clears a verification is audited a second time as a warning.
func (e *Extension) OnEmissionUpdated(ctx context.Context, ev *plugin.RecordEvent) error {
	_ = e.record(ctx, ev.ID, string(ev.Principal),
		ActionEmissionUpdated, SeverityInfo, OutcomeSuccess,
		ResourceRecord, entityID(ev), CategoryEmissions, nil,
		"previous_emission", ev.Previous.String(),
		"carbon_emission", ev.Record.CarbonEmission.String(),
	)
	if !ev.WasVerified {
		return nil
	}
	return e.record(ctx, ev.ID, string(ev.Principal),
		ActionVerificationReset, SeverityWarning, OutcomeSuccess,
		ResourceRecord, entityID(ev), CategoryVerification, nil,
		"previous_emission", ev.Previous.String(),
	)
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (e *Extension) OnOperationFailed(ctx context.Context, ev *plugin.FailureEvent) error {
	action, severity, category := ActionOperationRejected, SeverityWarning, CategoryEmissions
	switch ev.Kind {
	case plugin.KindAuth:
		action, category = ActionOperationDenied, CategoryAccess
	case plugin.KindStore:
		action, severity, category = ActionOperationFailed, SeverityError, CategoryStorage
	}

	var resourceID string
	if ev.EntityID != 0 {
		resourceID = strconv.FormatUint(ev.EntityID, 10)
	}
	return e.record(ctx, ev.ID, string(ev.Principal),
		action, severity, OutcomeFailure,
		ResourceRecord, resourceID, category, ev.Err,
		"operation", ev.Operation,
		"kind", ev.Kind,
	)
}

func entityID(ev *plugin.RecordEvent) string {
	if ev.Record == nil {
		return ""
	}
	return strconv.FormatUint(ev.Record.EntityID, 10)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	eventID id.ID, actor string,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
	}

	evt := &AuditEvent{
		ID:         id.NewAuditID(),
		EventID:    eventID,
		Actor:      actor,
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
