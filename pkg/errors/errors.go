// Package apperrors defines the behaviour-typed sentinel errors shared
// across the trading engine: transient/validation/insufficient-funds/
// state-conflict/data-integrity/fatal, classified rather than typed.
package apperrors

import "errors"

// Transient errors: retryable per the order executor's retry policy.
var (
	ErrNetwork              = errors.New("network error")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrTimestampOutOfBounds = errors.New("timestamp out of bounds")
)

// Validation errors: reject at the boundary, never retry.
var (
	ErrInvalidOrderParameter = errors.New("invalid order parameter")
	ErrInvalidSymbol         = errors.New("invalid symbol")
)

// Non-retryable business errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOrderRejected     = errors.New("order rejected")
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateOrder    = errors.New("duplicate order")
)

// State-conflict errors: refuse the operation, log, continue.
var (
	ErrStateConflict    = errors.New("state conflict")
	ErrPositionExists   = errors.New("position already open")
	ErrAlreadyLiquidating = errors.New("emergency liquidation already in progress")
)

// Fatal / operational errors.
var (
	ErrSystemOverload = errors.New("system overload")
	ErrDailyLossLimit = errors.New("daily loss limit reached")
	ErrBusStopped     = errors.New("event bus stopped")
)
