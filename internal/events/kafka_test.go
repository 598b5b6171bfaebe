package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	fetchErr  error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		err := r.fetchErr
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func encoded(t *testing.T, e CalculationEvent, offset int64) kafka.Message {
	t.Helper()
	key, value, err := e.Encode()
	require.NoError(t, err)
	return kafka.Message{Key: key, Value: value, Offset: offset, Topic: "calculations"}
}

func result(v float64) *float64 { return &v }

func TestBrokerList(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		want    []string
	}{
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"trimmed", " k1:9092 , k2:9092 ", []string{"k1:9092", "k2:9092"}},
		{"empty entries dropped", "k1:9092,,", []string{"k1:9092"}},
		{"blank falls back", "  ", []string{"localhost:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Config{Brokers: tt.brokers}.BrokerList())
		})
	}
}

func TestDecodeRejectsIncompleteEvents(t *testing.T) {
	_, err := Decode([]byte(`{"operation":"add"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	e, err := Decode([]byte(`{"operation":"divide","a":1,"b":0,"outcome":"failure","error_kind":"division_by_zero"}`))
	require.NoError(t, err)
	assert.Equal(t, "division_by_zero", e.ErrorKind)
	assert.Nil(t, e.Result)
}

func TestProducerPublishKeysByOperation(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil)

	ev := CalculationEvent{Operation: "multiply", A: 6, B: 7, Result: result(42), Outcome: OutcomeSuccess, Timestamp: time.Unix(0, 0).UTC()}
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "multiply", string(w.msgs[0].Key))

	got, err := Decode(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestProducerPublishError(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("broker down")}, nil)

	err := p.Publish(context.Background(), CalculationEvent{Operation: "add", Outcome: OutcomeSuccess})
	assert.ErrorContains(t, err, "broker down")
}

func TestConsumerRunHandlesAndCommits(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Value: []byte("garbage"), Offset: 1},
		encodedEvent(t, "add", 2),
		encodedEvent(t, "subtract", 3),
	}}
	core, logs := observer.New(zap.WarnLevel)
	c := newConsumer(r, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(_ context.Context, e CalculationEvent) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, e.Operation)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"add", "subtract"}, seen)
	assert.Equal(t, []int64{1, 2, 3}, r.commits())
	assert.Equal(t, 1, logs.FilterMessage("kafka malformed event, skip").Len())
}

func TestConsumerRunStopsOnHandlerError(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{encodedEvent(t, "divide", 7), encodedEvent(t, "add", 8)}}
	c := newConsumer(r, nil)

	var handled int
	err := c.Run(context.Background(), func(context.Context, CalculationEvent) error {
		handled++
		return errors.New("downstream unavailable")
	})

	require.Error(t, err)
	assert.ErrorContains(t, err, "offset 7")
	assert.ErrorContains(t, err, "downstream unavailable")
	assert.Equal(t, 1, handled)
	assert.Empty(t, r.commits())
	assert.Len(t, r.queue, 1, "later messages must not be fetched past a failure")
}

func TestConsumerRunReturnsReaderError(t *testing.T) {
	r := &fakeReader{fetchErr: errors.New("group coordinator gone")}
	c := newConsumer(r, nil)

	err := c.Run(context.Background(), func(context.Context, CalculationEvent) error { return nil })
	assert.ErrorContains(t, err, "group coordinator gone")
}

func TestTallyCountsByOperationAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	tally, err := NewTally(reg, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, tally.Handle(ctx, CalculationEvent{Operation: "add", Outcome: OutcomeSuccess}))
	require.NoError(t, tally.Handle(ctx, CalculationEvent{Operation: "add", Outcome: OutcomeSuccess}))
	require.NoError(t, tally.Handle(ctx, CalculationEvent{Operation: "divide", Outcome: OutcomeFailure}))

	assert.Equal(t, 2.0, testutil.ToFloat64(tally.total.WithLabelValues("add", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tally.total.WithLabelValues("divide", OutcomeFailure)))

	_, err = NewTally(reg, nil)
	assert.Error(t, err, "second registration on the same registry must fail")
}

func encodedEvent(t *testing.T, op string, offset int64) kafka.Message {
	t.Helper()
	return encoded(t, CalculationEvent{Operation: op, A: 1, B: 2, Result: result(3), Outcome: OutcomeSuccess}, offset)
}
