// Package calculator holds the arithmetic core: operation parsing, request
// validation and dispatch to the four pure operations. It has no side effects
// and a *Calculator is safe for concurrent use.
package calculator

import (
	"encoding/json"
	"math"
	"strings"
)

const (
	fieldOperation = "operation"
	fieldA         = "a"
	fieldB         = "b"
)

// Request is a validated calculation request.
type Request struct {
	Operation Operation
	A         float64
	B         float64
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithCaseInsensitive makes operation names match regardless of case, so "ADD" == "add".
func WithCaseInsensitive(enabled bool) Option {
	return func(c *Calculator) { c.caseInsensitive = enabled }
}

// WithSymbols accepts "+", "-", "*" and "/" as aliases of the named operations.
func WithSymbols(enabled bool) Option {
	return func(c *Calculator) { c.symbols = enabled }
}

// Calculator parses and dispatches operations. The zero value accepts only
// exact lowercase names.
type Calculator struct {
	caseInsensitive bool
	symbols         bool
}

// New returns a Calculator configured with opts.
func New(opts ...Option) *Calculator {
	c := &Calculator{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseOperation maps an operation name to an Operation.
func (c *Calculator) ParseOperation(name string) (Operation, error) {
	key := name
	if c.caseInsensitive {
		key = strings.ToLower(strings.TrimSpace(name))
	}
	for _, op := range Operations {
		if key == op.String() {
			return op, nil
		}
		if c.symbols && key == op.Symbol() {
			return op, nil
		}
	}
	return 0, newInvalidOperation(name)
}

// Calculate parses operation and applies it to a and b.
func (c *Calculator) Calculate(operation string, a, b float64) (float64, error) {
	op, err := c.ParseOperation(operation)
	if err != nil {
		return 0, err
	}
	return op.Apply(a, b)
}

// Evaluate applies a validated request.
func (c *Calculator) Evaluate(req Request) (float64, error) {
	return req.Operation.Apply(req.A, req.B)
}

// ParseRequest validates a decoded object with "operation", "a" and "b"
// keys, as produced by JSON decoding, structpb.Struct.AsMap or MCP tool
// arguments. Absent, null and empty-string values count as missing.
func (c *Calculator) ParseRequest(fields map[string]any) (Request, error) {
	if missing := missingFields(fields, fieldOperation, fieldA, fieldB); len(missing) > 0 {
		return Request{}, newMissingParameter(missing)
	}

	name, ok := fields[fieldOperation].(string)
	if !ok {
		return Request{}, newOperationNotString()
	}

	a, b, err := ParseOperands(fields)
	if err != nil {
		return Request{}, err
	}

	op, err := c.ParseOperation(name)
	if err != nil {
		return Request{}, err
	}
	return Request{Operation: op, A: a, B: b}, nil
}

// ParseOperands validates the "a" and "b" keys only, for transports that
// carry the operation out of band.
func ParseOperands(fields map[string]any) (a, b float64, err error) {
	if missing := missingFields(fields, fieldA, fieldB); len(missing) > 0 {
		return 0, 0, newMissingParameter(missing)
	}

	a, aOK := toFloat(fields[fieldA])
	b, bOK := toFloat(fields[fieldB])
	var invalid []string
	if !aOK {
		invalid = append(invalid, fieldA)
	}
	if !bOK {
		invalid = append(invalid, fieldB)
	}
	if len(invalid) > 0 {
		return 0, 0, newInvalidType(invalid)
	}
	return a, b, nil
}

// ValidateOperand rejects NaN and infinities, which JSON cannot carry but
// flag-parsed and binary inputs can.
func ValidateOperand(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return newInvalidType([]string{name})
	}
	return nil
}

// MissingFields returns the names whose values are absent, null or blank.
func MissingFields(fields map[string]any, names ...string) []string {
	return missingFields(fields, names...)
}

// Number converts a decoded JSON, structpb or native numeric value to a
// finite float64. ok is false for anything else.
func Number(v any) (f float64, ok bool) {
	return toFloat(v)
}

func missingFields(fields map[string]any, names ...string) []string {
	var missing []string
	for _, name := range names {
		if isMissing(fields[name]) {
			missing = append(missing, name)
		}
	}
	return missing
}

func isMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
