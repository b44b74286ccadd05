package dynolayer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	// ErrQuery is matched by every *QueryError.
	ErrQuery = errors.New("query error")

	// ErrInvalidArgument is matched by every *InvalidArgumentError.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrRecordNotFound is matched by every *RecordNotFoundError.
	ErrRecordNotFound = errors.New("record not found")

	// ErrBackend is matched by every *BackendError.
	ErrBackend = errors.New("backend error")

	// ErrTableDescriptionMissing is wrapped when DescribeTable returns no table.
	ErrTableDescriptionMissing = errors.New("table description missing")
)

// detail is a single key/value pair appended to an error message.
type detail struct {
	key   string
	value string
}

func formatError(message string, details []detail) string {
	var b strings.Builder
	b.WriteString("dynolayer: ")
	b.WriteString(message)

	parts := make([]string, 0, len(details))
	for _, d := range details {
		if d.value == "" {
			continue
		}
		parts = append(parts, d.key+": "+d.value)
	}

	if len(parts) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}

	return b.String()
}

// QueryError is returned when a query cannot be built or executed: a terminal call
// without conditions, a malformed between/in value or an operator that is not valid
// for the clause's mode.
type QueryError struct {
	Message     string
	Operation   string   // terminal operation or builder method that failed
	Suggestions []string // optional hints for fixing the query
	Err         error    // optional cause
}

func (e *QueryError) Error() string {
	details := []detail{
		{"operation", e.Operation},
		{"suggestions", strings.Join(e.Suggestions, ", ")},
	}
	if e.Err != nil {
		details = append(details, detail{"cause", e.Err.Error()})
	}
	return formatError(e.Message, details)
}

func (e *QueryError) Is(target error) bool { return target == ErrQuery }
func (e *QueryError) Unwrap() error        { return e.Err }

// InvalidArgumentError is returned when a builder method receives the wrong number
// or type of arguments.
type InvalidArgumentError struct {
	Message  string
	Method   string
	Expected string
	Received string
}

func (e *InvalidArgumentError) Error() string {
	return formatError(e.Message, []detail{
		{"method", e.Method},
		{"expected", e.Expected},
		{"received", e.Received},
	})
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// ValidationError is returned when record data is missing a required field.
type ValidationError struct {
	Message        string
	Field          string
	Value          any
	RequiredFields []string
}

func (e *ValidationError) Error() string {
	var value string
	if e.Value != nil {
		value = fmt.Sprint(e.Value)
	}
	return formatError(e.Message, []detail{
		{"field", e.Field},
		{"value", value},
		{"required_fields", strings.Join(e.RequiredFields, ", ")},
	})
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RecordNotFoundError is returned when a lookup by key demands an existing item.
type RecordNotFoundError struct {
	Message string
	Entity  string
	Key     map[string]any
}

func (e *RecordNotFoundError) Error() string {
	message := e.Message
	if message == "" {
		message = "Record not found."
	}
	return formatError(message, []detail{
		{"key", formatKey(e.Key)},
		{"entity", e.Entity},
	})
}

func (e *RecordNotFoundError) Is(target error) bool { return target == ErrRecordNotFound }

// BackendError wraps a failure returned by the store client. The original error
// stays reachable through errors.As / errors.Unwrap.
type BackendError struct {
	Op    string // store operation, e.g. "Query"
	Table string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("dynolayer: %s on table %q failed: %v", e.Op, e.Table, e.Err)
}

func (e *BackendError) Is(target error) bool { return target == ErrBackend }
func (e *BackendError) Unwrap() error        { return e.Err }

func formatKey(key map[string]any) string {
	if len(key) == 0 {
		return ""
	}
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, key[name])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// IsQueryError reports whether err is (or wraps) a *QueryError.
func IsQueryError(err error) bool { return errors.Is(err, ErrQuery) }

// IsInvalidArgument reports whether err is (or wraps) an *InvalidArgumentError.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool { return errors.Is(err, ErrValidation) }

// IsRecordNotFound reports whether err is (or wraps) a *RecordNotFoundError.
func IsRecordNotFound(err error) bool { return errors.Is(err, ErrRecordNotFound) }

// IsBackendError reports whether err is (or wraps) a *BackendError.
func IsBackendError(err error) bool { return errors.Is(err, ErrBackend) }
