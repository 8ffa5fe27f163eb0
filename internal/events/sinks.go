package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/storage"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "events").Logger()}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, e *domain.DecisionEvent) error {
	s.logger.Info().
		Str("id", e.ID).
		Str("type", string(e.Type)).
		Str("token", e.TokenID).
		Str("correlation", e.CorrelationID).
		Time("occurred_at", e.OccurredAt).
		Interface("payload", e.Payload).
		Msg("decision")
	return nil
}

func (s *LogSink) Close() error { return nil }

// JournalSink appends events to a storage.DecisionEventStore.
// Duplicate ids are treated as already written.
type JournalSink struct {
	name  string
	store storage.DecisionEventStore
}

var _ Sink = (*JournalSink)(nil)

// NewJournalSink creates a JournalSink named after its backend ("postgres", "clickhouse", "memory").
func NewJournalSink(name string, store storage.DecisionEventStore) *JournalSink {
	return &JournalSink{name: name, store: store}
}

func (s *JournalSink) Name() string { return s.name }

func (s *JournalSink) Write(ctx context.Context, e *domain.DecisionEvent) error {
	err := s.store.Insert(ctx, e)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

func (s *JournalSink) Close() error { return nil }

// KafkaConfig configures KafkaSink.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON messages keyed by token id.
type KafkaSink struct {
	topic  string
	writer messageWriter
}

var _ Sink = (*KafkaSink)(nil)

// NewKafkaSink creates a KafkaSink with a synchronous writer.
func NewKafkaSink(cfg KafkaConfig, logger zerolog.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: brokers cannot be empty")
	}
	if cfg.Topic == "" {
		cfg.Topic = "sentinel-decisions"
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}
	log := logger.With().Str("component", "kafka-sink").Logger()

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: 1,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error().Msgf(msg, args...)
		}),
	})
	return newKafkaSink(cfg.Topic, w), nil
}

func newKafkaSink(topic string, w messageWriter) *KafkaSink {
	return &KafkaSink{topic: topic, writer: w}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, e *domain.DecisionEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.TokenID),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to kafka topic %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

// RedisConfig configures RedisSink.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisSink publishes events on a pub/sub channel.
type RedisSink struct {
	channel string
	client  redisPublisher
}

var _ Sink = (*RedisSink)(nil)

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(ctx context.Context, cfg RedisConfig) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis sink: addr is required")
	}
	if cfg.Channel == "" {
		cfg.Channel = "sentinel:decisions"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisSink(cfg.Channel, client), nil
}

func newRedisSink(channel string, client redisPublisher) *RedisSink {
	return &RedisSink{channel: channel, client: client}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, e *domain.DecisionEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.channel, err)
	}
	return nil
}

func (s *RedisSink) Close() error { return s.client.Close() }
