package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calculator-api/internal/cache"
	"calculator-api/internal/calculator"
	"calculator-api/internal/config"
	"calculator-api/internal/service"
)

func TestInitServiceOptionsWiresRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Config{
		Redis: cache.Config{Enabled: true, Addr: mr.Addr(), TTL: time.Hour, KeyPrefix: "calc:"},
	}
	opts, closeAll := initServiceOptions(context.Background(), cfg)
	t.Cleanup(closeAll)
	require.Len(t, opts, 1)

	svc := service.New(calculator.New(), opts...)
	res, err := svc.Calculate(context.Background(), calculator.Request{Operation: calculator.OpAdd, A: 2, B: 3})
	require.NoError(t, err)
	assert.False(t, res.Cached)

	stored, err := mr.Get("calc:2 + 3")
	require.NoError(t, err)
	assert.Equal(t, "5", stored)

	res, err = svc.Calculate(context.Background(), calculator.Request{Operation: calculator.OpAdd, A: 2, B: 3})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 5.0, res.Result)
}

func TestInitServiceOptionsSkipsUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Config{Redis: cache.Config{Enabled: true, Addr: addr}}
	opts, closeAll := initServiceOptions(context.Background(), cfg)
	t.Cleanup(closeAll)

	assert.Empty(t, opts)
}

func TestInitServiceOptionsWiresKafkaProducer(t *testing.T) {
	cfg := config.Config{}
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = "127.0.0.1:9092"
	cfg.Kafka.Topic = "calculations"

	opts, closeAll := initServiceOptions(context.Background(), cfg)
	assert.Len(t, opts, 1)
	closeAll()
}
