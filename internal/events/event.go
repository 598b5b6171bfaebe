// Package events publishes and consumes calculation events over Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CalculationEvent describes one finished calculation, successful or not.
type CalculationEvent struct {
	Operation string    `json:"operation"`
	A         float64   `json:"a"`
	B         float64   `json:"b"`
	Result    *float64  `json:"result,omitempty"`
	Outcome   string    `json:"outcome"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	Cached    bool      `json:"cached,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode returns the Kafka message key and JSON value for e.
func (e CalculationEvent) Encode() (key, value []byte, err error) {
	value, err = json.Marshal(e)
	if err != nil {
		return nil, nil, fmt.Errorf("encode event: %w", err)
	}
	return []byte(e.Operation), value, nil
}

// Decode parses a JSON event.
func Decode(value []byte) (CalculationEvent, error) {
	var e CalculationEvent
	if err := json.Unmarshal(value, &e); err != nil {
		return CalculationEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Operation == "" || e.Outcome == "" {
		return CalculationEvent{}, fmt.Errorf("decode event: operation and outcome are required")
	}
	return e, nil
}
