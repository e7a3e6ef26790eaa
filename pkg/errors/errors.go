// Package errors provides structured error types used across the application.
// We prefer these over raw fmt.Errorf strings to enable reliable checks with
// errors.Is / errors.As and to carry minimal context about the failure.
package errors

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a referenced venue, pair, or exclusion does not exist.
type NotFoundError struct {
	Op  string // where it happened (package.Function)
	Msg string // human friendly message (no PII)
	Err error  // underlying cause (optional)
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("not found: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("not found: %s: %s", e.Op, e.Msg)
}

func (e *NotFoundError) Unwrap() error     { return e.Err }
func (e *NotFoundError) Operation() string { return e.Op }
func (e *NotFoundError) Message() string   { return e.Msg }

func NewNotFound(op, msg string, err error) error {
	return &NotFoundError{Op: op, Msg: msg, Err: err}
}

// InvalidArgumentError indicates malformed caller input: empty identity
// lists, negative distances or thresholds, identical merge endpoints.
type InvalidArgumentError struct {
	Op  string
	Msg string
	Err error
}

func (e *InvalidArgumentError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid argument: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("invalid argument: %s: %s", e.Op, e.Msg)
}

func (e *InvalidArgumentError) Unwrap() error     { return e.Err }
func (e *InvalidArgumentError) Operation() string { return e.Op }
func (e *InvalidArgumentError) Message() string   { return e.Msg }

func NewInvalid(op, msg string, err error) error {
	return &InvalidArgumentError{Op: op, Msg: msg, Err: err}
}

// ConstraintError indicates a mutation step violated a foreign-key or
// uniqueness rule. A merge transaction hitting one always rolls back whole.
type ConstraintError struct {
	Op  string
	Msg string
	Err error
}

func (e *ConstraintError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("constraint: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("constraint: %s: %s", e.Op, e.Msg)
}

func (e *ConstraintError) Unwrap() error     { return e.Err }
func (e *ConstraintError) Operation() string { return e.Op }
func (e *ConstraintError) Message() string   { return e.Msg }

func NewConstraint(op, msg string, err error) error {
	return &ConstraintError{Op: op, Msg: msg, Err: err}
}

// ProviderError represents failures of the spatial/text query capability or
// other external services (Google Maps, OpenAI). Detection paths degrade to
// empty results on these; they never corrupt persisted state.
type ProviderError struct {
	Op     string
	Msg    string
	Err    error
	System string // optional system name e.g. "spatial" / "google" / "openai"
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	sys := e.System
	if sys == "" {
		sys = "provider"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", sys, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", sys, e.Op, e.Msg)
}

func (e *ProviderError) Unwrap() error     { return e.Err }
func (e *ProviderError) Operation() string { return e.Op }
func (e *ProviderError) Message() string   { return e.Msg }

func NewProvider(op, system, msg string, err error) error {
	return &ProviderError{Op: op, System: system, Msg: msg, Err: err}
}

// DBError represents database access/operation failures.
type DBError struct {
	Op  string
	Msg string
	Err error
}

func (e *DBError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("db: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("db: %s: %s", e.Op, e.Msg)
}

func (e *DBError) Unwrap() error     { return e.Err }
func (e *DBError) Operation() string { return e.Op }
func (e *DBError) Message() string   { return e.Msg }

func NewDB(op, msg string, err error) error { return &DBError{Op: op, Msg: msg, Err: err} }

// IsKind helpers: allow callers to check error kind without type assertions.
// Example: if errors.Is(err, errors.ErrNotFound) { ... }
var (
	ErrNotFound   = &NotFoundError{}
	ErrInvalid    = &InvalidArgumentError{}
	ErrConstraint = &ConstraintError{}
	ErrProvider   = &ProviderError{}
	ErrDB         = &DBError{}
)

// Is enables errors.Is(err, ErrNotFound) via errors.As semantics.
// We delegate to errors.As with the zero-value pointer of each type.
func Is(err, target error) bool {
	if err == nil || target == nil {
		return errors.Is(err, target)
	}
	switch target.(type) {
	case *NotFoundError:
		var n *NotFoundError
		return errors.As(err, &n)
	case *InvalidArgumentError:
		var i *InvalidArgumentError
		return errors.As(err, &i)
	case *ConstraintError:
		var c *ConstraintError
		return errors.As(err, &c)
	case *ProviderError:
		var p *ProviderError
		return errors.As(err, &p)
	case *DBError:
		var d *DBError
		return errors.As(err, &d)
	default:
		return errors.Is(err, target)
	}
}
