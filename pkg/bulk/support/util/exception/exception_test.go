package exception_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
)

func TestNewOperationError(t *testing.T) {
	originalErr := errors.New("db connection refused")
	oe := exception.New("engine", exception.ClassTransientUnavailable, "failed to connect", originalErr)

	assert.Equal(t, "engine", oe.Module)
	assert.Equal(t, exception.ClassTransientUnavailable, oe.Class)
	assert.Equal(t, "failed to connect", oe.Message)
	assert.Equal(t, originalErr, oe.Unwrap())
	assert.True(t, oe.IsRetryable())
	assert.Contains(t, oe.Error(), "[engine]")
	assert.Contains(t, oe.Error(), "failed to connect")
	assert.Contains(t, oe.Error(), "db connection refused")
	assert.NotEmpty(t, oe.StackTrace)
}

func TestNewf(t *testing.T) {
	oe := exception.Newf("planner", exception.ClassValidation, "field %q missing on record %d", "Name", 2)

	assert.Equal(t, exception.ClassValidation, oe.Class)
	assert.Contains(t, oe.Error(), `field "Name" missing on record 2`)
	assert.Nil(t, oe.Unwrap())
	assert.False(t, oe.IsRetryable())
}

func TestWithFieldAndRecordIndex(t *testing.T) {
	oe := exception.Newf("planner", exception.ClassValidation, "missing required field").
		WithField("Name").
		WithRecordIndex(7)

	assert.Equal(t, "Name", oe.Field)
	assert.Equal(t, 7, oe.RecordIndex)
	assert.Contains(t, oe.Error(), "Name")
}

func TestWrap(t *testing.T) {
	cause := errors.New("row 3 could not be deleted")
	oe := exception.Newf("tracker", exception.ClassRollback, "rollback incomplete").Wrap(cause)

	assert.Equal(t, cause, oe.Unwrap())
	assert.True(t, errors.Is(oe, cause))
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, exception.ErrorClass(""), exception.ClassOf(nil))
	assert.Equal(t, exception.ClassRateLimited,
		exception.ClassOf(exception.Newf("e", exception.ClassRateLimited, "throttled")))
	assert.Equal(t, exception.ClassTimedOut, exception.ClassOf(context.DeadlineExceeded))
	assert.Equal(t, exception.ClassInternal, exception.ClassOf(errors.New("boom")))

	// Wrapped OperationErrors keep their class.
	wrapped := fmt.Errorf("outer: %w", exception.Newf("e", exception.ClassDuplicateValue, "dup"))
	assert.Equal(t, exception.ClassDuplicateValue, exception.ClassOf(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, exception.IsRetryable(nil))
	assert.True(t, exception.IsRetryable(exception.Newf("e", exception.ClassRateLimited, "throttled")))
	assert.True(t, exception.IsRetryable(exception.Newf("e", exception.ClassTransientUnavailable, "down")))
	assert.False(t, exception.IsRetryable(exception.Newf("e", exception.ClassDuplicateValue, "dup")))
	assert.False(t, exception.IsRetryable(exception.Newf("e", exception.ClassValidation, "bad")))

	// Heuristics for non-OperationErrors.
	assert.True(t, exception.IsRetryable(errors.New("dial tcp: connection refused")))
	assert.True(t, exception.IsRetryable(errors.New("429 too many requests")))
	assert.False(t, exception.IsRetryable(errors.New("permission denied")))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, exception.IsFatal(nil))
	assert.True(t, exception.IsFatal(exception.Newf("e", exception.ClassValidation, "bad")))
	assert.False(t, exception.IsFatal(exception.Newf("e", exception.ClassRateLimited, "throttled")))
	assert.True(t, exception.IsFatal(errors.New("segfault")))
}

func TestIsClass(t *testing.T) {
	oe := exception.Newf("poller", exception.ClassTimedOut, "budget exhausted")
	assert.True(t, exception.IsClass(oe, exception.ClassTimedOut))
	assert.False(t, exception.IsClass(oe, exception.ClassRollback))
	assert.False(t, exception.IsClass(errors.New("plain"), exception.ClassTimedOut))
}

func TestClassRegistry(t *testing.T) {
	assert.True(t, exception.IsClassRegistered("RATE_LIMITED"))
	assert.True(t, exception.IsClassRegistered("VALIDATION"))
	assert.False(t, exception.IsClassRegistered("NO_SUCH_CLASS"))

	exception.RegisterErrorClass("CUSTOM_CLASS", exception.ErrorClass("CUSTOM_CLASS"))
	assert.True(t, exception.IsClassRegistered("CUSTOM_CLASS"))
}

func TestExtractMessage(t *testing.T) {
	assert.Equal(t, "", exception.ExtractMessage(nil))
	assert.Equal(t, "clean message",
		exception.ExtractMessage(exception.New("e", exception.ClassInternal, "clean message", errors.New("noisy cause"))))
	assert.Equal(t, "plain", exception.ExtractMessage(errors.New("plain")))
}
