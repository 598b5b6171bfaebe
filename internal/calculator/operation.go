package calculator

import "strings"

// Operation is one of the four supported arithmetic functions.
type Operation int

const (
	OpAdd Operation = iota + 1
	OpSubtract
	OpMultiply
	OpDivide
)

// Operations lists the supported operations in their canonical order.
var Operations = []Operation{OpAdd, OpSubtract, OpMultiply, OpDivide}

var operationNames = map[Operation]string{
	OpAdd:      "add",
	OpSubtract: "subtract",
	OpMultiply: "multiply",
	OpDivide:   "divide",
}

var operationSymbols = map[Operation]string{
	OpAdd:      "+",
	OpSubtract: "-",
	OpMultiply: "*",
	OpDivide:   "/",
}

// String returns the canonical lowercase name, e.g. "add".
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "unknown"
}

// Symbol returns the arithmetic symbol, e.g. "+".
func (o Operation) Symbol() string {
	if sym, ok := operationSymbols[o]; ok {
		return sym
	}
	return "?"
}

// Valid reports whether o is one of the supported operations.
func (o Operation) Valid() bool {
	_, ok := operationNames[o]
	return ok
}

// Apply evaluates the operation on a and b.
func (o Operation) Apply(a, b float64) (float64, error) {
	switch o {
	case OpAdd:
		return Add(a, b), nil
	case OpSubtract:
		return Subtract(a, b), nil
	case OpMultiply:
		return Multiply(a, b), nil
	case OpDivide:
		return Divide(a, b)
	default:
		return 0, newInvalidOperation(o.String())
	}
}

// SupportedNames returns the canonical names joined for error messages.
func SupportedNames() string {
	names := make([]string, 0, len(Operations))
	for _, op := range Operations {
		names = append(names, op.String())
	}
	return strings.Join(names, ", ")
}

// Add returns a + b.
func Add(a, b float64) float64 { return a + b }

// Subtract returns a - b.
func Subtract(a, b float64) float64 { return a - b }

// Multiply returns a * b.
func Multiply(a, b float64) float64 { return a * b }

// Divide returns a / b. It fails with ErrDivisionByZero when b is zero.
func Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, newDivisionByZero()
	}
	return a / b, nil
}
