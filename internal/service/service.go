// Package service wraps the calculator core for the transports: it adds
// timestamps, tracing, metrics, the optional result cache and optional event
// publishing. The core stays pure; everything with side effects lives here.
package service

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"calculator-api/internal/calculator"
	"calculator-api/internal/events"
	"calculator-api/internal/observability"
)

var tracer = otel.Tracer("calculator")

const defaultPublishTimeout = 2 * time.Second

// Result is a successful calculation.
type Result struct {
	Operation string    `json:"operation"`
	A         float64   `json:"a"`
	B         float64   `json:"b"`
	Result    float64   `json:"result"`
	Timestamp time.Time `json:"timestamp"`
	Cached    bool      `json:"-"`
}

// Option configures a Service.
type Option func(*Service)

// WithCache memoizes successful results in c.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher emits an event for every calculation, successful or not.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublishTimeout bounds how long a calculation waits on the publisher.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) { s.publishTimeout = d }
}

// Service is safe for concurrent use.
type Service struct {
	calc           *calculator.Calculator
	cache          Cache
	publisher      Publisher
	now            func() time.Time
	publishTimeout time.Duration
	group          singleflight.Group
}

// New returns a Service over calc.
func New(calc *calculator.Calculator, opts ...Option) *Service {
	s := &Service{
		calc:           calc,
		now:            time.Now,
		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calculator returns the core the service dispatches to.
func (s *Service) Calculator() *calculator.Calculator {
	return s.calc
}

// CalculateFields validates a decoded request object and calculates it.
// Validation failures are traced, counted and published like evaluation
// failures.
func (s *Service) CalculateFields(ctx context.Context, fields map[string]any) (Result, error) {
	req, err := s.calc.ParseRequest(fields)
	if err != nil {
		name, _ := fields["operation"].(string)
		a, b := eventOperands(fields)
		s.fail(ctx, name, a, b, err)
		return Result{}, err
	}
	return s.Calculate(ctx, req)
}

// CalculateOperation calculates a request whose operation comes from outside
// the body, such as a URL path segment.
func (s *Service) CalculateOperation(ctx context.Context, operation string, fields map[string]any) (Result, error) {
	a, b, err := calculator.ParseOperands(fields)
	if err == nil {
		var op calculator.Operation
		if op, err = s.calc.ParseOperation(operation); err == nil {
			return s.Calculate(ctx, calculator.Request{Operation: op, A: a, B: b})
		}
	}
	a, b = eventOperands(fields)
	s.fail(ctx, operation, a, b, err)
	return Result{}, err
}

// eventOperands reads whichever operands are numeric for a failure event.
// The rest stay zero.
func eventOperands(fields map[string]any) (a, b float64) {
	a, _ = calculator.Number(fields["a"])
	b, _ = calculator.Number(fields["b"])
	return a, b
}

// Calculate evaluates a validated request.
func (s *Service) Calculate(ctx context.Context, req calculator.Request) (Result, error) {
	opName := req.Operation.String()
	requestID := observability.RequestIDFromContext(ctx)
	logger := observability.LoggerWithTrace(ctx)

	ctx, span := tracer.Start(ctx, "calculator."+opName,
		trace.WithAttributes(
			attribute.String("calculator.operation", opName),
			attribute.Float64("calculator.operand.a", req.A),
			attribute.Float64("calculator.operand.b", req.B),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	start := time.Now()
	value, cached, err := s.evaluate(ctx, req)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.countError(ctx, opName, err)
		s.publish(ctx, failureEvent(opName, req.A, req.B, err, requestID, s.now()))
		return Result{}, err
	}

	attrs := metric.WithAttributes(attribute.String("operation", opName))
	opsCounter.Add(ctx, 1, attrs)
	opsHistogram.Record(ctx, elapsed, attrs)
	resultGauge.Record(ctx, value, attrs)

	span.AddEvent("computation.complete", trace.WithAttributes(
		attribute.Float64("result", value),
		attribute.Bool("cached", cached),
	))
	span.SetAttributes(attribute.Float64("calculator.result", value))
	span.SetStatus(codes.Ok, "")

	logger.Info("calculator operation completed",
		zap.String("operation", opName),
		zap.Float64("a", req.A),
		zap.Float64("b", req.B),
		zap.Float64("result", value),
		zap.Bool("cached", cached),
		zap.String("request_id", requestID),
		zap.Float64("duration_ms", elapsed),
	)

	res := Result{
		Operation: opName,
		A:         req.A,
		B:         req.B,
		Result:    value,
		Timestamp: s.now().UTC(),
		Cached:    cached,
	}
	s.publish(ctx, successEvent(res, requestID))
	return res, nil
}

// evaluate consults the cache, then the core. Concurrent misses on the same
// key share one evaluation.
func (s *Service) evaluate(ctx context.Context, req calculator.Request) (float64, bool, error) {
	if s.cache == nil {
		v, err := s.compute(req)
		return v, false, err
	}

	key := cacheKey(req)
	logger := observability.LoggerWithTrace(ctx)

	v, found, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		cacheCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	case found:
		cacheCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "hit")))
		return v, true, nil
	default:
		cacheCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "miss")))
	}

	out, err, _ := s.group.Do(key, func() (any, error) {
		v, err := s.compute(req)
		if err != nil {
			return 0.0, err
		}
		if err := s.cache.Set(context.WithoutCancel(ctx), key, v); err != nil {
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
		return v, nil
	})
	if err != nil {
		return 0, false, err
	}
	return out.(float64), false, nil
}

// compute evaluates req and rejects overflowed results, which JSON cannot carry.
func (s *Service) compute(req calculator.Request) (float64, error) {
	v, err := s.calc.Evaluate(req)
	if err != nil {
		return 0, err
	}
	if err := calculator.CheckFinite(req, v); err != nil {
		return 0, err
	}
	return v, nil
}

// cacheKey renders a request as "a symbol b", e.g. "5 + 3".
func cacheKey(req calculator.Request) string {
	return strconv.FormatFloat(req.A, 'g', -1, 64) + " " +
		req.Operation.Symbol() + " " +
		strconv.FormatFloat(req.B, 'g', -1, 64)
}

// fail records a request that never reached evaluation.
func (s *Service) fail(ctx context.Context, operation string, a, b float64, err error) {
	_, span := tracer.Start(ctx, "calculator.validate")
	defer span.End()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	s.countError(ctx, operation, err)
	s.publish(ctx, failureEvent(operation, a, b, err, observability.RequestIDFromContext(ctx), s.now()))
}

func (s *Service) countError(ctx context.Context, operation string, err error) {
	errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("kind", calculator.KindOf(err).String()),
	))
}

// publish sends e without letting the publisher fail or stall the caller.
func (s *Service) publish(ctx context.Context, e events.CalculationEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, e); err != nil {
		observability.LoggerWithTrace(ctx).Warn("publish calculation event failed",
			zap.String("operation", e.Operation),
			zap.Error(err),
		)
	}
}

func successEvent(r Result, requestID string) events.CalculationEvent {
	v := r.Result
	return events.CalculationEvent{
		Operation: r.Operation,
		A:         r.A,
		B:         r.B,
		Result:    &v,
		Outcome:   events.OutcomeSuccess,
		Cached:    r.Cached,
		RequestID: requestID,
		Timestamp: r.Timestamp,
	}
}

func failureEvent(operation string, a, b float64, err error, requestID string, now time.Time) events.CalculationEvent {
	if operation == "" {
		operation = "unknown"
	}
	e := events.CalculationEvent{
		Operation: operation,
		A:         a,
		B:         b,
		Outcome:   events.OutcomeFailure,
		ErrorKind: calculator.KindOf(err).String(),
		RequestID: requestID,
		Timestamp: now.UTC(),
	}
	// Internal messages stay in the logs.
	if calculator.IsClientError(err) {
		e.Error = err.Error()
	}
	return e
}
