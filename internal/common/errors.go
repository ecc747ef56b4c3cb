// Package common defines the domain error kinds shared by the core services
// and the storage backends. Callers match them with errors.As / errors.Is.
package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrConflict is returned by storage when a guarded status write affected no
// rows, meaning the record changed under the caller. The core maps it to an
// InvalidStateTransition.
var ErrConflict = errors.New("conflicting concurrent update")

// ValidationError signals malformed or missing input. Recoverable by the
// caller correcting the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NotFoundError signals that a referenced id does not exist or is not owned
// by the caller. Ownership failures deliberately look identical to missing
// records.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InvalidStateTransition signals an operation attempted from an incompatible
// state.
type InvalidStateTransition struct {
	Kind string
	From string
	To   string
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Kind, e.From, e.To)
}

// InvariantViolation signals an operation that would break a structural
// invariant, e.g. deleting an owner's last entity.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Reason
}

// ExpiredError signals that a time-bounded validity lapsed, e.g. accepting a
// quote past its validUntil.
type ExpiredError struct {
	Kind string
	ID   string
	At   time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("%s %s expired at %s", e.Kind, e.ID, e.At.Format(time.RFC3339))
}
