package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"calculator-api/internal/calculator"
	"calculator-api/internal/observability"
	"calculator-api/internal/service"
)

// MaxBodyBytes caps request bodies on calculation routes.
const MaxBodyBytes = 1 << 20

const (
	invalidJSONMessage  = "Invalid JSON body"
	bodyTooLargeMessage = "Request body too large"
	operationPathParam  = "operation"
)

var errTrailingData = errors.New("unexpected data after JSON body")

// Calculator serves the calculation routes.
type Calculator struct {
	svc *service.Service
}

func NewCalculator(svc *service.Service) *Calculator {
	return &Calculator{svc: svc}
}

// Calculate handles POST /calculate with {"operation", "a", "b"}.
func (h *Calculator) Calculate(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeObject(w, r, "calculate")
	if !ok {
		return
	}

	res, err := h.svc.CalculateFields(r.Context(), fields)
	if err != nil {
		h.writeCalcError(r.Context(), w, "calculate", err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// CalculateOperation handles POST /calculate/{operation} with {"a", "b"}.
func (h *Calculator) CalculateOperation(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, operationPathParam)

	fields, ok := h.decodeObject(w, r, op)
	if !ok {
		return
	}

	res, err := h.svc.CalculateOperation(r.Context(), op, fields)
	if err != nil {
		h.writeCalcError(r.Context(), w, op, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Chain handles POST /calculate/chain with {"initial", "steps": [{"op", "value"}]}.
func (h *Calculator) Chain(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeObject(w, r, "chain")
	if !ok {
		return
	}

	res, err := h.svc.ChainFields(r.Context(), fields)
	if err != nil {
		h.writeCalcError(r.Context(), w, "chain", err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// decodeObject reads the body as a JSON object with numbers kept as
// json.Number. An empty body decodes to an empty object.
func (h *Calculator) decodeObject(w http.ResponseWriter, r *http.Request, opName string) (map[string]any, bool) {
	fields := map[string]any{}
	if err := decodeBody(w, r, &fields); err != nil {
		h.writeDecodeError(r.Context(), w, opName, err)
		return nil, false
	}
	if fields == nil {
		// Body was the literal null.
		fields = map[string]any{}
	}
	return fields, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	// Exactly one JSON value per body.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errTrailingData
		}
		return err
	}
	return nil
}

func (h *Calculator) writeDecodeError(ctx context.Context, w http.ResponseWriter, opName string, err error) {
	status, msg := http.StatusBadRequest, invalidJSONMessage
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status, msg = http.StatusRequestEntityTooLarge, bodyTooLargeMessage
	}
	observability.RecordError(ctx, trace.SpanFromContext(ctx), observability.LoggerWithTrace(ctx),
		service.ErrorCounter(), opName, msg, nil, err, status, w)
}

// writeCalcError maps a calculation failure to 400 or 500. The service has
// already counted it.
func (h *Calculator) writeCalcError(ctx context.Context, w http.ResponseWriter, opName string, err error) {
	status := http.StatusBadRequest
	if !calculator.IsClientError(err) {
		status = http.StatusInternalServerError
	}

	var details map[string]string
	var ce *calculator.Error
	if errors.As(err, &ce) {
		details = ce.Details
	}

	observability.RecordError(ctx, trace.SpanFromContext(ctx), observability.LoggerWithTrace(ctx),
		nil, opName, err.Error(), details, err, status, w)
}
