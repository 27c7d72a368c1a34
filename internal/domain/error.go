package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Storage
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// Validation errors wrap ErrInvalidArgument so callers can match either.
var (
	ErrMalformedCode = fmt.Errorf("%w: malformed voucher code", ErrInvalidArgument)
	ErrInvalidPhone  = fmt.Errorf("%w: invalid phone number", ErrInvalidArgument)
	ErrInvalidRange  = fmt.Errorf("%w: value outside configured range", ErrInvalidArgument)
	ErrInvalidPlan   = fmt.Errorf("%w: plan unknown or inactive", ErrInvalidArgument)
	ErrNegativeUsage = fmt.Errorf("%w: negative usage delta", ErrInvalidArgument)
	ErrInvalidDevice = fmt.Errorf("%w: invalid device identity", ErrInvalidArgument)
	ErrInvalidChart  = fmt.Errorf("%w: unknown chart or period", ErrInvalidArgument)

	// ErrCallbackRejected marks a completion callback that disagrees with the
	// stored request or with the provider's own record of the charge.
	ErrCallbackRejected = fmt.Errorf("%w: callback does not match the charge", ErrInvalidArgument)
)

// Not-found errors wrap ErrNotFound.
var (
	ErrPlanNotFound = fmt.Errorf("%w: plan", ErrNotFound)
)

// Conflicts: surfaced to the caller, never retried by the engine.
var (
	ErrConflict            = errors.New("conflict")
	ErrAlreadyUsed         = fmt.Errorf("%w: voucher already used", ErrConflict)
	ErrDeviceAlreadyActive = fmt.Errorf("%w: device already has an active session", ErrConflict)
	ErrRequestInFlight     = fmt.Errorf("%w: payment request already pending for phone", ErrConflict)
	ErrNotActive           = fmt.Errorf("%w: session not active", ErrConflict)
	ErrPaymentNotCompleted = fmt.Errorf("%w: payment not completed", ErrConflict)
	ErrPaymentClaimed      = fmt.Errorf("%w: payment already claimed", ErrConflict)
	ErrLockNotAcquired     = fmt.Errorf("%w: resource busy", ErrConflict)
)

var (
	ErrExpired             = errors.New("voucher expired")
	ErrTooManyAttempts     = errors.New("too many attempts")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// ErrorKind is the coarse classification used at the transport boundary.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindExpired    ErrorKind = "expired"
	KindRateLimit  ErrorKind = "rate_limited"
	KindExternal   ErrorKind = "external"
	KindInternal   ErrorKind = "internal"
)

// Kind classifies err into one of the ErrorKind buckets.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrExpired):
		return KindExpired
	case errors.Is(err, ErrTooManyAttempts):
		return KindRateLimit
	case errors.Is(err, ErrProviderUnavailable):
		return KindExternal
	default:
		return KindInternal
	}
}
