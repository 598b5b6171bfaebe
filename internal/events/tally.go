package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Tally counts consumed events per operation and outcome.
type Tally struct {
	total *prometheus.CounterVec
	log   *zap.Logger
}

// NewTally registers calculator_events_total on reg.
func NewTally(reg prometheus.Registerer, log *zap.Logger) (*Tally, error) {
	if log == nil {
		log = zap.NewNop()
	}
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calculator_events_total",
			Help: "Calculation events consumed, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	if err := reg.Register(total); err != nil {
		return nil, err
	}
	return &Tally{total: total, log: log}, nil
}

// Handle implements Handler.
func (t *Tally) Handle(_ context.Context, e CalculationEvent) error {
	t.total.WithLabelValues(e.Operation, e.Outcome).Inc()
	t.log.Info("calculation event",
		zap.String("operation", e.Operation),
		zap.String("outcome", e.Outcome),
		zap.String("error_kind", e.ErrorKind),
		zap.String("request_id", e.RequestID),
	)
	return nil
}
