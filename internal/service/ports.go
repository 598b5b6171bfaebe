package service

import (
	"context"

	"calculator-api/internal/events"
)

//go:generate mockgen -source=ports.go -destination=../mocks/service_mocks.go -package=mocks

// Cache memoizes results by key. Implemented by cache.ResultCache.
type Cache interface {
	Get(ctx context.Context, key string) (value float64, found bool, err error)
	Set(ctx context.Context, key string, value float64) error
}

// Publisher emits calculation events. Implemented by events.Producer.
type Publisher interface {
	Publish(ctx context.Context, e events.CalculationEvent) error
}
