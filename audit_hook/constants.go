package audithook

// Action constants for audit events.
const (
	ActionRecordRegistered  = "record.registered"
	ActionRecordVerified    = "record.verified"
	ActionEmissionUpdated   = "record.emission_updated"
	ActionVerificationReset = "record.verification_reset"
	ActionOperationDenied   = "operation.denied"
	ActionOperationRejected = "operation.rejected"
	ActionOperationFailed   = "operation.failed"
)

// Resource constants for audit events.
const (
	ResourceRecord = "carbon_record"
	ResourceLedger = "ledger"
)

// Category constants for audit events.
const (
	CategoryEmissions    = "emissions"
	CategoryVerification = "verification"
	CategoryAccess       = "access"
	CategoryStorage      = "storage"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
