package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"calculator-api/internal/calculator"
)

func TestCalculateRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, InitMetrics())

	svc := New(newCalc())
	ctx := context.Background()
	_, err := svc.Calculate(ctx, calculator.Request{Operation: calculator.OpAdd, A: 1, B: 2})
	require.NoError(t, err)
	_, err = svc.Calculate(ctx, calculator.Request{Operation: calculator.OpDivide, A: 1, B: 0})
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	for _, want := range []string{
		"calculator.operations.total",
		"calculator.operation.duration",
		"calculator.last_result",
		"calculator.errors.total",
	} {
		assert.True(t, names[want], "expected metric %s", want)
	}
}

func TestChainRecordsChildSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	svc := New(newCalc())
	_, err := svc.Chain(context.Background(), 1, []Step{{Op: "add", Value: 1}, {Op: "divide", Value: 0}})
	require.Error(t, err)

	spans := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range sr.Ended() {
		spans[s.Name()] = s
	}

	require.Contains(t, spans, "calculator.chain")
	require.Contains(t, spans, "calculator.chain.step.0")
	require.Contains(t, spans, "calculator.chain.step.1")

	assert.Equal(t, codes.Ok, spans["calculator.chain.step.0"].Status().Code)
	assert.Equal(t, codes.Error, spans["calculator.chain.step.1"].Status().Code)
	assert.Equal(t, codes.Error, spans["calculator.chain"].Status().Code)
	assert.Equal(t,
		spans["calculator.chain"].SpanContext().SpanID(),
		spans["calculator.chain.step.1"].Parent().SpanID(),
	)
}
