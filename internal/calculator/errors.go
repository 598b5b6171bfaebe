package calculator

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind classifies a calculation failure.
type Kind int

const (
	KindInternal Kind = iota
	KindMissingParameter
	KindInvalidType
	KindInvalidOperation
	KindDivisionByZero
)

func (k Kind) String() string {
	switch k {
	case KindMissingParameter:
		return "missing_parameter"
	case KindInvalidType:
		return "invalid_type"
	case KindInvalidOperation:
		return "invalid_operation"
	case KindDivisionByZero:
		return "division_by_zero"
	default:
		return "internal"
	}
}

// Sentinels matched with errors.Is against any *Error of the same kind.
var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidType      = errors.New("invalid type")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrInternal         = errors.New("internal error")
)

// Error is a typed calculation failure. Message is safe to return to callers.
type Error struct {
	Kind    Kind
	Message string
	// Details maps a request field to a per-field message.
	Details map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel for the error's kind.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindMissingParameter:
		return ErrMissingParameter
	case KindInvalidType:
		return ErrInvalidType
	case KindInvalidOperation:
		return ErrInvalidOperation
	case KindDivisionByZero:
		return ErrDivisionByZero
	default:
		return ErrInternal
	}
}

// KindOf returns the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsClientError reports whether err was caused by the request rather than the server.
func IsClientError(err error) bool {
	return err != nil && KindOf(err) != KindInternal
}

func newMissingParameter(fields []string) *Error {
	details := make(map[string]string, len(fields))
	for _, f := range fields {
		details[f] = fmt.Sprintf("The %s field is required", f)
	}
	return &Error{
		Kind:    KindMissingParameter,
		Message: "Missing required parameters: " + strings.Join(fields, ", "),
		Details: details,
	}
}

func newInvalidType(fields []string) *Error {
	details := make(map[string]string, len(fields))
	for _, f := range fields {
		details[f] = fmt.Sprintf("The %s field must be a number", f)
	}
	msg := "Parameters " + strings.Join(fields, " and ") + " must be numbers"
	if len(fields) == 1 {
		msg = "Parameter " + fields[0] + " must be a number"
	}
	return &Error{Kind: KindInvalidType, Message: msg, Details: details}
}

func newOperationNotString() *Error {
	return &Error{
		Kind:    KindInvalidType,
		Message: "Parameter operation must be a string",
		Details: map[string]string{fieldOperation: "The operation field must be a string"},
	}
}

func newInvalidOperation(op string) *Error {
	return &Error{
		Kind:    KindInvalidOperation,
		Message: fmt.Sprintf("Invalid operation: %s. Use: %s", op, SupportedNames()),
	}
}

func newDivisionByZero() *Error {
	return &Error{Kind: KindDivisionByZero, Message: "Division by zero"}
}

// MissingParameters reports fields absent from a request decoded outside
// ParseRequest, such as a chain without steps.
func MissingParameters(fields ...string) *Error {
	return newMissingParameter(fields)
}

// InvalidTypes reports non-numeric fields of a request decoded outside
// ParseRequest, such as a chain step value.
func InvalidTypes(fields ...string) *Error {
	return newInvalidType(fields)
}

// WrongShape reports a field whose JSON type is not the expected one, for
// fields that are not operands. want reads like "an array" or "a string".
func WrongShape(field, want string) *Error {
	return &Error{
		Kind:    KindInvalidType,
		Message: fmt.Sprintf("Parameter %s must be %s", field, want),
		Details: map[string]string{field: fmt.Sprintf("The %s field must be %s", field, want)},
	}
}

// CheckFinite rejects a NaN or infinite result of req as an internal error.
// Finite operands can still overflow, e.g. multiply 1e308 10.
func CheckFinite(req Request, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &Error{
			Kind:    KindInternal,
			Message: fmt.Sprintf("%s %g %g: result is not finite", req.Operation, req.A, req.B),
		}
	}
	return nil
}
