package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calculator-api/internal/calculator"
	"calculator-api/internal/service"
	"calculator-api/internal/testutil"
)

var testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestRouter() http.Handler {
	calc := calculator.New(calculator.WithCaseInsensitive(true), calculator.WithSymbols(true))
	h := NewCalculator(service.New(calc, service.WithClock(func() time.Time { return testNow })))

	r := chi.NewRouter()
	r.Post("/calculate", h.Calculate)
	r.Post("/calculate/chain", h.Chain)
	r.Post("/calculate/{operation}", h.CalculateOperation)
	return r
}

type calcBody struct {
	Operation string  `json:"operation"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	Result    float64 `json:"result"`
	Timestamp string  `json:"timestamp"`
}

func TestCalculateSuccess(t *testing.T) {
	tests := []struct {
		body string
		op   string
		want float64
	}{
		{`{"operation":"add","a":5,"b":3}`, "add", 8},
		{`{"operation":"subtract","a":10,"b":4}`, "subtract", 6},
		{`{"operation":"multiply","a":6,"b":7}`, "multiply", 42},
		{`{"operation":"divide","a":20,"b":5}`, "divide", 4},
		{`{"operation":"divide","a":-5,"b":3}`, "divide", -1.6666666666666667},
		{`{"operation":"+","a":0.1,"b":0.2}`, "add", 0.30000000000000004},
	}

	router := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			rr := testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate", tt.body), router)
			testutil.CheckResponseCode(t, http.StatusOK, rr.Code)

			var got calcBody
			testutil.DecodeJSONBody(t, rr.Body, &got)
			assert.Equal(t, tt.op, got.Operation)
			assert.Equal(t, tt.want, got.Result)
			assert.Equal(t, "2026-01-02T03:04:05Z", got.Timestamp)
		})
	}
}

func TestCalculateClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
		details map[string]string
	}{
		{
			name:    "missing b",
			body:    `{"operation":"add","a":5}`,
			message: "Missing required parameters: b",
			details: map[string]string{"b": "The b field is required"},
		},
		{
			name:    "empty body",
			body:    ``,
			message: "Missing required parameters: operation, a, b",
		},
		{
			name:    "null operand",
			body:    `{"operation":"add","a":null,"b":1}`,
			message: "Missing required parameters: a",
		},
		{
			name:    "string operands",
			body:    `{"operation":"add","a":"5","b":"x"}`,
			message: "Parameters a and b must be numbers",
		},
		{
			name:    "invalid operation",
			body:    `{"operation":"invalid","a":5,"b":3}`,
			message: "Invalid operation: invalid. Use: add, subtract, multiply, divide",
		},
		{
			name:    "division by zero",
			body:    `{"operation":"divide","a":10,"b":0}`,
			message: "Division by zero",
		},
		{
			name:    "malformed json",
			body:    `{"operation":`,
			message: "Invalid JSON body",
		},
		{
			name:    "array body",
			body:    `[1,2]`,
			message: "Invalid JSON body",
		},
	}

	router := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate", tt.body), router)

			body := testutil.DecodeError(t, rr, http.StatusBadRequest)
			assert.Equal(t, tt.message, body.Error)
			if tt.details != nil {
				assert.Equal(t, tt.details, body.Details)
			}
		})
	}
}

func TestCalculateOverflowIsInternalError(t *testing.T) {
	rr := testutil.ExecuteRequest(
		testutil.NewJSONRequest(http.MethodPost, "/calculate", `{"operation":"multiply","a":1e308,"b":10}`),
		newTestRouter(),
	)

	body := testutil.DecodeError(t, rr, http.StatusInternalServerError)
	assert.Equal(t, "Internal server error", body.Error)
	assert.Empty(t, body.Details)
}

func TestCalculateBodyTooLarge(t *testing.T) {
	big := `{"operation":"add","a":1,"b":2,"pad":"` + strings.Repeat("x", MaxBodyBytes) + `"}`

	rr := testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate", big), newTestRouter())

	body := testutil.DecodeError(t, rr, http.StatusRequestEntityTooLarge)
	assert.Equal(t, "Request body too large", body.Error)
}

func TestCalculateOperationRoute(t *testing.T) {
	router := newTestRouter()

	rr := testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate/multiply", `{"a":6,"b":7}`), router)
	testutil.CheckResponseCode(t, http.StatusOK, rr.Code)
	var got calcBody
	testutil.DecodeJSONBody(t, rr.Body, &got)
	assert.Equal(t, 42.0, got.Result)
	assert.Equal(t, "multiply", got.Operation)

	rr = testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate/modulo", `{"a":6,"b":7}`), router)
	body := testutil.DecodeError(t, rr, http.StatusBadRequest)
	assert.Equal(t, "Invalid operation: modulo. Use: add, subtract, multiply, divide", body.Error)

	rr = testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate/add", `{"a":true,"b":7}`), router)
	body = testutil.DecodeError(t, rr, http.StatusBadRequest)
	assert.Equal(t, "Parameter a must be a number", body.Error)
}

func TestChainRoute(t *testing.T) {
	router := newTestRouter()

	rr := testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate/chain",
		`{"initial":2,"steps":[{"op":"add","value":3},{"op":"multiply","value":4}]}`), router)
	testutil.CheckResponseCode(t, http.StatusOK, rr.Code)

	var got service.ChainResult
	testutil.DecodeJSONBody(t, rr.Body, &got)
	assert.Equal(t, 20.0, got.Result)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, 5.0, got.Steps[0].Result)

	rr = testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate/chain",
		`{"initial":2,"steps":[{"op":"divide","value":0}]}`), router)
	body := testutil.DecodeError(t, rr, http.StatusBadRequest)
	assert.Equal(t, "Step 0: Division by zero", body.Error)

	rr = testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate/chain", `{"initial":2}`), router)
	body = testutil.DecodeError(t, rr, http.StatusBadRequest)
	assert.Equal(t, "Missing required parameters: steps", body.Error)
}

func TestChainRouteRejectsIncompleteSteps(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"step without value", `{"initial":10,"steps":[{"op":"add"}]}`, "Step 0: Missing required parameters: value"},
		{"divide without value", `{"initial":10,"steps":[{"op":"divide"}]}`, "Step 0: Missing required parameters: value"},
		{"no initial", `{"steps":[{"op":"multiply","value":3}]}`, "Missing required parameters: initial"},
		{"string value", `{"initial":10,"steps":[{"op":"add","value":"5"}]}`, "Step 0: Parameter value must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate/chain", tt.body), router)
			body := testutil.DecodeError(t, rr, http.StatusBadRequest)
			assert.Equal(t, tt.want, body.Error)
		})
	}
}

func TestCalculateRejectsTrailingData(t *testing.T) {
	router := newTestRouter()

	for _, body := range []string{
		`{"operation":"add","a":1,"b":2} garbage`,
		`{"operation":"add","a":1,"b":2}{"operation":"add","a":1,"b":2}`,
	} {
		rr := testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate", body), router)
		got := testutil.DecodeError(t, rr, http.StatusBadRequest)
		assert.Equal(t, "Invalid JSON body", got.Error)
	}

	rr := testutil.ExecuteRequest(testutil.NewJSONRequest(http.MethodPost, "/calculate", "{\"operation\":\"add\",\"a\":1,\"b\":2}\n"), router)
	testutil.CheckResponseCode(t, http.StatusOK, rr.Code)
}
