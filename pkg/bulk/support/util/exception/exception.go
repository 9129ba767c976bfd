// Package exception provides the error taxonomy for the Bulkhead orchestrator.
// Every failure that crosses a component boundary is classified into an error
// class so that retry, skip and reporting decisions can be made without string
// matching at the call site.
package exception

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// ErrorClass identifies a category of operation failure. Classes drive the
// propagation policy: some abort the whole plan, some only the affected batch,
// and some only the affected row.
type ErrorClass string

const (
	// ClassValidation marks a plan that failed schema checks. Fatal for the
	// whole operation; nothing is executed.
	ClassValidation ErrorClass = "VALIDATION"
	// ClassLimitConfiguration marks a batching request that cannot satisfy the
	// configured quotas (e.g. a single record larger than MaxBytesPerBatch).
	ClassLimitConfiguration ErrorClass = "LIMIT_CONFIGURATION"
	// ClassRateLimited marks a call rejected by the backend's quota governor.
	// Retryable with backoff.
	ClassRateLimited ErrorClass = "RATE_LIMITED"
	// ClassTransientUnavailable marks a temporary backend outage. Retryable
	// with backoff.
	ClassTransientUnavailable ErrorClass = "TRANSIENT_UNAVAILABLE"
	// ClassRetryExhausted marks a retryable failure that survived the full
	// retry budget.
	ClassRetryExhausted ErrorClass = "RETRY_EXHAUSTED"
	// ClassPartialFailure marks a batch that completed with a mix of
	// successful and failed rows. Not fatal; surfaced per row.
	ClassPartialFailure ErrorClass = "PARTIAL_FAILURE"
	// ClassSchemaMismatch marks a missing external-id field or an unresolved
	// relationship target. Fatal for the affected plan or record.
	ClassSchemaMismatch ErrorClass = "SCHEMA_MISMATCH"
	// ClassDuplicateValue marks a uniqueness violation reported by the
	// backend. Never retried.
	ClassDuplicateValue ErrorClass = "DUPLICATE_VALUE"
	// ClassInvalidReference marks a dangling lookup value reported by the
	// backend. Never retried.
	ClassInvalidReference ErrorClass = "INVALID_REFERENCE"
	// ClassRollback marks a compensating action that could not be undone.
	ClassRollback ErrorClass = "ROLLBACK"
	// ClassTimedOut marks a poll or backoff deadline that expired locally.
	// The backend state is unknown and must be re-queried by the caller.
	ClassTimedOut ErrorClass = "TIMED_OUT"
	// ClassInternal marks an unclassified orchestrator failure.
	ClassInternal ErrorClass = "INTERNAL"
)

// retryableClasses is the fixed set of classes the retry policy may act on.
var retryableClasses = map[ErrorClass]bool{
	ClassRateLimited:          true,
	ClassTransientUnavailable: true,
}

// classRegistry maps class names referenced in configuration to ErrorClass
// values, so retryable classes can be extended from YAML without code changes.
var classRegistry = map[string]ErrorClass{}

// registryMutex protects access to classRegistry.
var registryMutex sync.RWMutex

// RegisterErrorClass registers a class name in the registry. Registered names
// are referenced by configuration (e.g. additional retryable classes) and by
// IsClassRegistered. It panics on an empty name, mirroring the fail-fast
// behaviour expected during package initialization.
func RegisterErrorClass(name string, class ErrorClass) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if name == "" {
		panic("error class name cannot be empty")
	}
	classRegistry[name] = class
}

// IsClassRegistered checks whether the given class name is known.
func IsClassRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := classRegistry[name]
	return ok
}

func init() {
	for _, c := range []ErrorClass{
		ClassValidation, ClassLimitConfiguration, ClassRateLimited,
		ClassTransientUnavailable, ClassRetryExhausted, ClassPartialFailure,
		ClassSchemaMismatch, ClassDuplicateValue, ClassInvalidReference,
		ClassRollback, ClassTimedOut, ClassInternal,
	} {
		RegisterErrorClass(string(c), c)
	}
}

// OperationError is the error type used throughout the orchestrator. It holds
// the module where the failure occurred, a message, the error class, the
// wrapped original error and, where applicable, the offending field name and
// record index so callers can retry narrowly.
type OperationError struct {
	// Module indicates the component where the error occurred
	// (e.g. "planner", "batcher", "engine", "tracker").
	Module string
	// Class is the error class used for propagation and retry decisions.
	Class ErrorClass
	// Message is a concise description of the failure.
	Message string
	// Field names the offending schema field, when one exists.
	Field string
	// RecordIndex is the index of the offending record within its plan, or -1.
	RecordIndex int
	// OriginalErr is the wrapped cause.
	OriginalErr error
	// StackTrace is the stack captured at construction time, for debugging.
	StackTrace string
}

// New creates a new OperationError.
func New(module string, class ErrorClass, message string, originalErr error) *OperationError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &OperationError{
		Module:      module,
		Class:       class,
		Message:     message,
		RecordIndex: -1,
		OriginalErr: originalErr,
		StackTrace:  string(buf[:n]),
	}
}

// Newf creates a new OperationError with a formatted message.
func Newf(module string, class ErrorClass, format string, a ...interface{}) *OperationError {
	return New(module, class, fmt.Sprintf(format, a...), nil)
}

// WithField returns the error annotated with the offending field name.
func (e *OperationError) WithField(field string) *OperationError {
	e.Field = field
	return e
}

// WithRecordIndex returns the error annotated with the offending record index.
func (e *OperationError) WithRecordIndex(index int) *OperationError {
	e.RecordIndex = index
	return e
}

// Wrap attaches a cause to an error built with Newf.
func (e *OperationError) Wrap(cause error) *OperationError {
	e.OriginalErr = cause
	return e
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", e.Module, e.Class, e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field: %s)", e.Field)
	}
	if e.RecordIndex >= 0 {
		fmt.Fprintf(&b, " (record: %d)", e.RecordIndex)
	}
	if e.OriginalErr != nil {
		fmt.Fprintf(&b, ": %v", e.OriginalErr)
	}
	return b.String()
}

// Unwrap returns the wrapped cause for errors.Unwrap.
func (e *OperationError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the retry policy may act on this error.
func (e *OperationError) IsRetryable() bool {
	return retryableClasses[e.Class]
}

// ClassOf extracts the ErrorClass from an error chain. Errors that are not
// OperationErrors are classified heuristically: context deadline expiry maps
// to TIMED_OUT, everything else to INTERNAL.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimedOut
	}
	return ClassInternal
}

// IsRetryable determines whether an error may be retried. The class of an
// OperationError takes precedence; otherwise a small set of transport-level
// message patterns is recognized, matching what remote data platforms emit
// for throttling and temporary unavailability.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "temporarily unavailable")
}

// IsFatal determines whether an error aborts its scope without retry. For an
// OperationError this is everything outside the retryable classes; for other
// errors it defaults to true (unknown failures are not retried).
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var oe *OperationError
	if errors.As(err, &oe) {
		return !oe.IsRetryable()
	}
	return !IsRetryable(err)
}

// IsClass reports whether err carries the given error class anywhere in its
// chain.
func IsClass(err error, class ErrorClass) bool {
	if err == nil {
		return false
	}
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Class == class
	}
	return false
}

// ExtractMessage extracts a display message from an error. For an
// OperationError it returns the cleaner Message field.
func ExtractMessage(err error) string {
	if err == nil {
		return ""
	}
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Message
	}
	return err.Error()
}
