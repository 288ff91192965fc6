// Package errs defines the closed set of error kinds the ORM surfaces to
// callers. Callers distinguish failures by kind, not by message text.
package errs

import "fmt"

// Kind identifies a class of failure a caller may want to handle
// differently (retry, abort, surface to a user).
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindSchemaState    Kind = "SCHEMA_STATE"
	KindCapability     Kind = "CAPABILITY"
	KindPoolTimeout    Kind = "POOL_TIMEOUT"
	KindConnectionLost Kind = "CONNECTION_LOST"
	KindIntegrity      Kind = "INTEGRITY"
	KindUnknownRelation Kind = "UNKNOWN_RELATION"
	KindNotFilterable  Kind = "NOT_FILTERABLE"
	KindBadQuery       Kind = "BAD_QUERY"
)

// Error is the concrete error type carried through the ORM. It wraps an
// optional cause so callers can still use errors.Is/As against driver
// errors while switching on Kind for expected-failure handling.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func new(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Validation(msg string) *Error                { return new(KindValidation, msg) }
func Validationf(format string, a ...any) *Error  { return new(KindValidation, fmt.Sprintf(format, a...)) }
func SchemaState(msg string) *Error               { return new(KindSchemaState, msg) }
func SchemaStatef(format string, a ...any) *Error { return new(KindSchemaState, fmt.Sprintf(format, a...)) }
func Capability(msg string) *Error                { return new(KindCapability, msg) }
func PoolTimeout(msg string) *Error                { return new(KindPoolTimeout, msg) }
func ConnectionLost(msg string, cause error) *Error { return wrap(KindConnectionLost, msg, cause) }
func Integrity(cause error) *Error                 { return wrap(KindIntegrity, "constraint violation", cause) }
func UnknownRelation(name string) *Error {
	return new(KindUnknownRelation, fmt.Sprintf("unknown relation %q", name))
}
func NotFilterable(name string) *Error {
	return new(KindNotFilterable, fmt.Sprintf("property %q is not filterable", name))
}
func BadQuery(msg string) *Error { return new(KindBadQuery, msg) }

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
