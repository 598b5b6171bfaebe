package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"calculator-api/internal/calculator"
	"calculator-api/internal/observability"
)

// Step applies Op with Value to the running total.
type Step struct {
	Op    string  `json:"op"`
	Value float64 `json:"value"`
}

// StepResult records one executed step.
type StepResult struct {
	Op     string  `json:"op"`
	Value  float64 `json:"value"`
	Result float64 `json:"result"`
}

// ChainResult is a completed chain.
type ChainResult struct {
	Initial   float64      `json:"initial"`
	Steps     []StepResult `json:"steps"`
	Result    float64      `json:"result"`
	Timestamp time.Time    `json:"timestamp"`
}

// Chain applies steps in order to a running total that starts at initial.
// It stops at the first failing step and returns that step's error with the
// step index prepended to its message. Chains bypass the cache and publisher.
func (s *Service) Chain(ctx context.Context, initial float64, steps []Step) (ChainResult, error) {
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, "calculator.chain",
		trace.WithAttributes(
			attribute.Float64("chain.initial", initial),
			attribute.Int("chain.steps_count", len(steps)),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	if len(steps) == 0 {
		err := calculator.MissingParameters("steps")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.countError(ctx, "chain", err)
		return ChainResult{}, err
	}

	running := initial
	results := make([]StepResult, 0, len(steps))

	for i, step := range steps {
		_, stepSpan := tracer.Start(ctx, fmt.Sprintf("calculator.chain.step.%d", i),
			trace.WithAttributes(
				attribute.Int("chain.step.index", i),
				attribute.String("chain.step.operation", step.Op),
				attribute.Float64("chain.step.input", running),
				attribute.Float64("chain.step.value", step.Value),
			),
		)

		stepStart := time.Now()
		prev := running
		op, err := s.calc.ParseOperation(step.Op)
		if err == nil {
			running, err = s.compute(calculator.Request{Operation: op, A: running, B: step.Value})
		}
		stepElapsed := float64(time.Since(stepStart).Microseconds()) / 1000.0

		if err != nil {
			err = atStep(i, err)

			stepSpan.RecordError(err)
			stepSpan.SetStatus(codes.Error, err.Error())
			stepSpan.End()

			span.RecordError(err)
			span.SetStatus(codes.Error, fmt.Sprintf("failed at step %d", i))
			s.countError(ctx, step.Op, err)

			logger.Warn("chain step failed",
				zap.Int("step", i),
				zap.String("operation", step.Op),
				zap.Error(err),
				zap.String("request_id", requestID),
			)
			return ChainResult{}, err
		}

		attrs := metric.WithAttributes(attribute.String("operation", op.String()))
		opsCounter.Add(ctx, 1, attrs)
		opsHistogram.Record(ctx, stepElapsed, attrs)

		stepSpan.AddEvent("step.complete", trace.WithAttributes(
			attribute.Float64("input", prev),
			attribute.Float64("result", running),
		))
		stepSpan.SetAttributes(attribute.Float64("chain.step.result", running))
		stepSpan.SetStatus(codes.Ok, "")
		stepSpan.End()

		results = append(results, StepResult{Op: op.String(), Value: step.Value, Result: running})
	}

	resultGauge.Record(ctx, running, metric.WithAttributes(attribute.String("operation", "chain")))

	span.SetAttributes(attribute.Float64("chain.result", running))
	span.SetStatus(codes.Ok, "")

	logger.Info("chained calculation completed",
		zap.Float64("initial", initial),
		zap.Float64("result", running),
		zap.Int("steps", len(steps)),
		zap.String("request_id", requestID),
	)

	return ChainResult{
		Initial:   initial,
		Steps:     results,
		Result:    running,
		Timestamp: s.now().UTC(),
	}, nil
}

// atStep prefixes a core error's message with the failing step index,
// keeping its kind.
func atStep(i int, err error) error {
	var ce *calculator.Error
	if !errors.As(err, &ce) {
		return fmt.Errorf("step %d: %w", i, err)
	}
	return &calculator.Error{
		Kind:    ce.Kind,
		Message: fmt.Sprintf("Step %d: %s", i, ce.Message),
		Details: ce.Details,
	}
}

// ChainFields validates a decoded {"initial", "steps": [{"op", "value"}]}
// object and runs the chain. Every field must be present: a missing initial
// or step value is MissingParameter, never zero.
func (s *Service) ChainFields(ctx context.Context, fields map[string]any) (ChainResult, error) {
	initial, steps, err := parseChain(fields)
	if err != nil {
		s.countError(ctx, "chain", err)
		return ChainResult{}, err
	}
	return s.Chain(ctx, initial, steps)
}

func parseChain(fields map[string]any) (float64, []Step, error) {
	if missing := calculator.MissingFields(fields, "initial", "steps"); len(missing) > 0 {
		return 0, nil, calculator.MissingParameters(missing...)
	}
	initial, ok := calculator.Number(fields["initial"])
	if !ok {
		return 0, nil, calculator.InvalidTypes("initial")
	}
	raw, ok := fields["steps"].([]any)
	if !ok {
		return 0, nil, calculator.WrongShape("steps", "an array")
	}
	if len(raw) == 0 {
		return 0, nil, calculator.MissingParameters("steps")
	}

	steps := make([]Step, 0, len(raw))
	for i, item := range raw {
		step, err := parseStep(item)
		if err != nil {
			return 0, nil, atStep(i, err)
		}
		steps = append(steps, step)
	}
	return initial, steps, nil
}

func parseStep(item any) (Step, error) {
	fields, ok := item.(map[string]any)
	if !ok {
		return Step{}, calculator.WrongShape("step", "an object")
	}
	if missing := calculator.MissingFields(fields, "op", "value"); len(missing) > 0 {
		return Step{}, calculator.MissingParameters(missing...)
	}
	op, ok := fields["op"].(string)
	if !ok {
		return Step{}, calculator.WrongShape("op", "a string")
	}
	value, ok := calculator.Number(fields["value"])
	if !ok {
		return Step{}, calculator.InvalidTypes("value")
	}
	return Step{Op: op, Value: value}, nil
}
