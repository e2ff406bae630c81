package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind represents the category of error
type Kind int

const (
	// KindMalformedReport - refactoring report unreadable or missing required shape
	KindMalformedReport Kind = iota
	// KindProbeInvocation - an external size tool exited non-zero or produced garbage
	KindProbeInvocation
	// KindMetadataResolution - git metadata lookup for a commit failed
	KindMetadataResolution
	// KindOutputWrite - creating or writing an output file failed
	KindOutputWrite
	// KindConfig - missing or invalid configuration
	KindConfig
	// KindValidation - invalid input data
	KindValidation
	// KindExternal - external service or tool failure outside the core (GitHub, JIRA, miner, clone)
	KindExternal
	// KindDatabase - run index failures
	KindDatabase
	// KindInternal - unexpected internal state
	KindInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, may impact functionality
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Kind       Kind
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is reports whether target is an *Error of the same kind, so
// errors.Is(err, errors.Sentinel(KindOutputWrite)) works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsFatal returns true if this error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		e.Kind.String(),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

// String returns the canonical name of the kind
func (k Kind) String() string {
	switch k {
	case KindMalformedReport:
		return "MalformedReport"
	case KindProbeInvocation:
		return "ProbeInvocationFailure"
	case KindMetadataResolution:
		return "MetadataResolutionFailure"
	case KindOutputWrite:
		return "OutputWriteFailure"
	case KindConfig:
		return "Config"
	case KindValidation:
		return "Validation"
	case KindExternal:
		return "External"
	case KindDatabase:
		return "Database"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error of the given kind. Severity comes from the policy table.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:       kind,
		Severity:   PolicyFor(kind).Severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps an existing error with a kind and message. Returns nil for a nil err.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Kind:       kind,
		Severity:   PolicyFor(kind).Severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Sentinel returns a bare *Error usable as an errors.Is target for kind.
func Sentinel(kind Kind) error {
	return &Error{Kind: kind}
}

// Convenience constructors

// MalformedReportf reports an unusable refactoring report
func MalformedReportf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return New(KindMalformedReport, fmt.Sprintf(format, args...))
	}
	return Wrap(err, KindMalformedReport, fmt.Sprintf(format, args...))
}

// ProbeFailuref reports a failed size tool invocation
func ProbeFailuref(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return New(KindProbeInvocation, fmt.Sprintf(format, args...))
	}
	return Wrap(err, KindProbeInvocation, fmt.Sprintf(format, args...))
}

// MetadataFailuref reports a failed commit metadata lookup
func MetadataFailuref(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return New(KindMetadataResolution, fmt.Sprintf(format, args...))
	}
	return Wrap(err, KindMetadataResolution, fmt.Sprintf(format, args...))
}

// OutputWriteFailuref reports a filesystem failure on an output file
func OutputWriteFailuref(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return New(KindOutputWrite, fmt.Sprintf(format, args...))
	}
	return Wrap(err, KindOutputWrite, fmt.Sprintf(format, args...))
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(KindConfig, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(KindConfig, fmt.Sprintf(format, args...))
}

// ValidationError creates a validation error
func ValidationError(message string) *Error {
	return New(KindValidation, message)
}

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// ExternalErrorf wraps an external service error with formatting
func ExternalErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return New(KindExternal, fmt.Sprintf(format, args...))
	}
	return Wrap(err, KindExternal, fmt.Sprintf(format, args...))
}

// DatabaseErrorf wraps a run index error with formatting
func DatabaseErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, KindDatabase, fmt.Sprintf(format, args...))
}

// InternalErrorf creates an internal error
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(KindInternal, fmt.Sprintf(format, args...))
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e.IsFatal()
	}

	return false
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is and As re-export the standard helpers so callers need one import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
