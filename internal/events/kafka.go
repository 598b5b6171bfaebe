package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Config holds Kafka settings. Variables: CALCULATOR_KAFKA_*.
type Config struct {
	Enabled      bool          `envconfig:"ENABLED" default:"false"`
	Brokers      string        `envconfig:"BROKERS" default:"localhost:9092"` // comma separated
	Topic        string        `envconfig:"TOPIC" default:"calculations"`
	GroupID      string        `envconfig:"GROUP_ID" default:"calculator-events"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"5s"`
}

// BrokerList splits Brokers on commas.
func (c Config) BrokerList() []string {
	if strings.TrimSpace(c.Brokers) == "" {
		return []string{"localhost:9092"}
	}
	parts := strings.Split(c.Brokers, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes CalculationEvents to the configured topic.
type Producer struct {
	w   messageWriter
	log *zap.Logger
}

// NewProducer creates an async-free producer; call Close when done.
func NewProducer(cfg Config, log *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.BrokerList()...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return newProducer(w, log)
}

func newProducer(w messageWriter, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{w: w, log: log}
}

// Publish writes one event keyed by operation so events for the same
// operation land on the same partition.
func (p *Producer) Publish(ctx context.Context, e CalculationEvent) error {
	key, value, err := e.Encode()
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return err
	}
	p.log.Debug("event published", zap.String("operation", e.Operation), zap.String("outcome", e.Outcome))
	return nil
}

func (p *Producer) Close() error {
	return p.w.Close()
}

// messageReader is the subset of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one decoded event. A non-nil error stops the consumer
// with the message uncommitted, so the group redelivers it from that offset
// after a restart.
type Handler func(ctx context.Context, e CalculationEvent) error

// Consumer reads CalculationEvents from a consumer group.
type Consumer struct {
	r   messageReader
	log *zap.Logger
}

// NewConsumer creates a group consumer; call Close when done.
func NewConsumer(cfg Config, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.BrokerList(),
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return newConsumer(r, log)
}

func newConsumer(r messageReader, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, log: log}
}

// Run fetches, decodes and handles messages until ctx is cancelled or the
// reader or handler fails. Malformed messages are committed and skipped.
// Commits are per offset, so a failed message is never stepped over.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("kafka consumer stopped", zap.Error(err))
			return err
		}

		fields := []zap.Field{
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		}

		e, err := Decode(msg.Value)
		if err != nil {
			c.log.Warn("kafka malformed event, skip", append(fields, zap.Error(err))...)
			if err := c.r.CommitMessages(ctx, msg); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		if err := handle(ctx, e); err != nil {
			c.log.Error("kafka consumer stopped (handler)", append(fields, zap.Error(err))...)
			return fmt.Errorf("handle offset %d: %w", msg.Offset, err)
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("kafka consumer stopped (commit)", append(fields, zap.Error(err))...)
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}
