package entitle

import (
	"errors"
	"fmt"

	"github.com/xraph/entitle/entitlement"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("entitle: not found")
	ErrInvalidInput = errors.New("entitle: invalid input")

	// Record errors
	ErrSubscriptionNotFound  = errors.New("entitle: subscription not found")
	ErrModuleNotFound        = errors.New("entitle: module subscription not found")
	ErrCreditAccountNotFound = errors.New("entitle: credit account not found")
	ErrUnknownModule         = errors.New("entitle: unknown module")

	// Policy denials
	ErrQuotaExceeded       = errors.New("entitle: limit reached")
	ErrModuleInactive      = errors.New("entitle: module not active")
	ErrInsufficientCredits = errors.New("entitle: insufficient credits")

	// Store errors
	ErrStoreUnavailable  = errors.New("entitle: store unavailable")
	ErrCreditConflict    = errors.New("entitle: credit balance changed during write")
	ErrConcurrentWrite   = errors.New("entitle: concurrent write retry exhausted")
	ErrResourceNotMapped = errors.New("entitle: resource has no usage table")
	ErrStoreClosed       = errors.New("entitle: store is closed")
	ErrMigrationFailed   = errors.New("entitle: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("entitle: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// DeniedError is a policy denial: the request was understood and the
// tenant is not entitled to it. It is never returned for infrastructure
// failures.
type DeniedError struct {
	TenantID string
	// Reason is one of ErrQuotaExceeded, ErrModuleInactive or
	// ErrInsufficientCredits.
	Reason  error
	Verdict *entitlement.QuotaVerdict
	Module  string
}

func (e *DeniedError) Error() string {
	switch {
	case e.Verdict != nil && e.Module != "":
		return fmt.Sprintf("%s: module %s: %s", e.Reason, e.Module, e.Verdict.Reason())
	case e.Verdict != nil:
		return fmt.Sprintf("%s: %s", e.Reason, e.Verdict.Reason())
	case e.Module != "":
		return fmt.Sprintf("%s: %s", e.Reason, e.Module)
	default:
		return e.Reason.Error()
	}
}

func (e *DeniedError) Unwrap() error { return e.Reason }

// unavailable wraps a store failure so that IsStoreUnavailable matches it
// while the cause stays inspectable.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrModuleNotFound) ||
		errors.Is(err, ErrCreditAccountNotFound)
}

// IsDenied returns true if the error is a policy denial.
func IsDenied(err error) bool {
	var d *DeniedError
	return errors.As(err, &d) ||
		errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrModuleInactive) ||
		errors.Is(err, ErrInsufficientCredits)
}

// IsStoreUnavailable returns true if the operation failed because the
// authoritative store could not be read or written.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrConcurrentWrite) ||
		errors.Is(err, ErrCreditConflict)
}
