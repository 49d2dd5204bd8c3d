package types

import (
	"errors"
	"fmt"
)

// Sentinel errors returned across the engine.
var (
	ErrNoQuotes           = errors.New("no quotes provided")
	ErrNoStopLoss         = errors.New("no stop loss set")
	ErrNoTakeProfit       = errors.New("no take profit set")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrOperationFailed    = errors.New("operation failed")
	ErrMarketUpdateFailed = errors.New("failed to process market update")
)

// ValidationError describes a rejected input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrInvalidInput
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NotFoundError is returned when a referenced entity does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is lets errors.Is match ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// OperationError wraps an internal failure. Error() returns a generic
// message so that collaborator details never reach callers; Unwrap keeps
// the cause available for logging.
type OperationError struct {
	Op   string
	Kind error
	Err  error
}

// NewOperationError wraps err under the given operation with ErrOperationFailed
func NewOperationError(op string, err error) *OperationError {
	return &OperationError{Op: op, Kind: ErrOperationFailed, Err: err}
}

func (e *OperationError) Error() string {
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return ErrOperationFailed.Error()
}

// Is matches the error kind as well as ErrOperationFailed
func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed || (e.Kind != nil && target == e.Kind)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Cause returns a detailed description suitable for logs only
func (e *OperationError) Cause() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}
