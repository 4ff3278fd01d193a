/*
errors.go - Centralized error types for the ledger and cost engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure carries a stable KIND (the taxonomy callers branch on)
  and a stable REASON code (what exactly went wrong), plus a message.

ERROR KINDS:
  ErrValidation          Missing or malformed field (400-equivalent)
  ErrNotFound            Referenced user/project/record absent
  ErrForbidden           Ownership or permission violation
  ErrConflict            Duplicate uniqueness key, or decide-on-decided
  ErrPreconditionFailed  e.g. no approved time backing a cost calculation
  ErrStorageFailure      Transaction could not commit (transient)

USAGE:
  return generic.Errorf(generic.ErrDuplicateEntry, "time record for %s on %s exists", user, date)

  errors.Is(err, generic.ErrDuplicateEntry) // true
  errors.Is(err, generic.ErrConflict)       // true, via the reason's kind

SEE ALSO:
  - approval.go: Raises ErrAlreadyDecided / ErrImmutable
  - store/sqlite: Translates unique-constraint failures into reasons
  - api/handlers.go: statusFor maps kinds to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// KINDS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrStorageFailure     = errors.New("storage failure")
)

// =============================================================================
// REASONS - Stable codes, each belonging to one kind
// =============================================================================

// Reason is a stable error code. It unwraps to its kind.
type Reason struct {
	Code string
	Kind error
}

func (r *Reason) Error() string { return r.Code }
func (r *Reason) Unwrap() error { return r.Kind }

func reason(code string, kind error) *Reason { return &Reason{Code: code, Kind: kind} }

var (
	ErrMissingField       = reason("missing_field", ErrValidation)
	ErrInvalidDate        = reason("invalid_date", ErrValidation)
	ErrInvalidClock       = reason("invalid_time", ErrValidation)
	ErrInvalidRange       = reason("invalid_range", ErrValidation)
	ErrInvalidPeriod      = reason("invalid_period", ErrValidation)
	ErrInvalidGranularity = reason("invalid_granularity", ErrValidation)
	ErrInvalidAction      = reason("invalid_action", ErrValidation)
	ErrMissingScope       = reason("missing_scope", ErrValidation)
	ErrUnknownReportType  = reason("unknown_report_type", ErrValidation)
	ErrMalformedBody      = reason("malformed_body", ErrValidation)

	ErrUserNotFound    = reason("user_not_found", ErrNotFound)
	ErrProjectNotFound = reason("project_not_found", ErrNotFound)
	ErrRecordNotFound  = reason("record_not_found", ErrNotFound)

	ErrNotOwner         = reason("not_owner", ErrForbidden)
	ErrNotAMember       = reason("not_a_member", ErrForbidden)
	ErrPermissionDenied = reason("permission_denied", ErrForbidden)

	ErrDuplicateEntry       = reason("duplicate_entry", ErrConflict)
	ErrDuplicateCalculation = reason("duplicate_calculation", ErrConflict)
	ErrAlreadyDecided       = reason("already_decided", ErrConflict)
	ErrImmutable            = reason("immutable", ErrConflict)

	ErrNoApprovedTime = reason("no_approved_time", ErrPreconditionFailed)
	ErrNoData         = reason("no_data", ErrPreconditionFailed)

	ErrCommitFailed = reason("commit_failed", ErrStorageFailure)
)

// =============================================================================
// STRUCTURED ERROR - Reason + human-readable message (+ optional cause)
// =============================================================================

type Error struct {
	Reason  *Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason, e.Err}
	}
	return []error{e.Reason}
}

// Errorf builds an *Error for reason with a formatted message.
func Errorf(r *Reason, format string, args ...any) *Error {
	return &Error{Reason: r, Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps a database failure. The in-flight transaction has
// already been rolled back when this reaches the caller.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Reason: ErrCommitFailed, Message: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

var kinds = []error{ErrValidation, ErrNotFound, ErrForbidden, ErrConflict, ErrPreconditionFailed, ErrStorageFailure}

// KindOf returns the kind sentinel of err, or nil for unclassified errors.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// CodeOf returns the reason code of err, or "internal_error".
func CodeOf(err error) string {
	var r *Reason
	if errors.As(err, &r) {
		return r.Code
	}
	return "internal_error"
}

// IsRetryable returns true if the whole operation may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrPreconditionFailed)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
