package greenscore

import (
	"errors"
	"fmt"

	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/types"
)

// Sentinel errors for common failure scenarios.
var (
	// Authorization errors
	ErrUnauthorized = errors.New("greenscore: unauthorized")

	// Validation errors
	ErrNegativeEmission  = errors.New("greenscore: carbon emission cannot be negative")
	ErrInvalidEntityType = errors.New("greenscore: entity type must be 'Company' or 'Product'")
	ErrAlreadyVerified   = errors.New("greenscore: record is already verified")
	ErrEmissionOverflow  = errors.New("greenscore: emission total out of range")

	// Lookup errors
	ErrRecordNotFound = errors.New("greenscore: carbon record not found")
	ErrStatsNotFound  = errors.New("greenscore: platform stats not found")

	// Store errors
	ErrStoreClosed       = errors.New("greenscore: store is closed")
	ErrTransactionFailed = errors.New("greenscore: transaction failed")
	ErrMigrationFailed   = errors.New("greenscore: migration failed")
	ErrReadOnly          = store.ErrReadOnly
)

// ValidationError represents a validation failure with details. It wraps
// one of the validation sentinels so errors.Is matches both.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("greenscore: validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, sentinel error, format string, args ...any) error {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrStatsNotFound)
}

// IsValidationError returns true if the error rejects caller input.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrNegativeEmission) ||
		errors.Is(err, ErrInvalidEntityType) ||
		errors.Is(err, ErrAlreadyVerified) ||
		errors.Is(err, ErrEmissionOverflow)
}

// IsAuthError returns true if the caller failed to prove control of the claimed address.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}

// overflow maps an emission range error onto ErrEmissionOverflow.
func overflow(field string, err error) error {
	if errors.Is(err, types.ErrOutOfRange) {
		return invalid(field, ErrEmissionOverflow, "%v", err)
	}
	return err
}
