package events

import (
	"context"
	"time"

	"plotbook/pkg/config"
	"plotbook/pkg/kafka"
	kafka_config "plotbook/pkg/kafka/config"
	kafka_middleware "plotbook/pkg/kafka/middleware"
	"plotbook/pkg/logger"
)

// Publisher emits lifecycle events after the owning transaction commits.
// Publish failures must never fail the business operation; implementations
// log and move on.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

type kafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewPublisher returns a Kafka-backed publisher when Kafka is enabled and a
// no-op publisher otherwise.
func NewPublisher(cfg *config.Config) (Publisher, error) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, lifecycle events will not be published")
		return NewNoopPublisher(), nil
	}

	kafkaCfg := kafka_config.Load()

	producer, err := kafka.NewProducer(kafkaCfg, cfg.EventsTopic, cfg.EventsDLQTopic)
	if err != nil {
		return nil, err
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.MetricsProducerMiddleware())

	cfg.Log.Info("Kafka event publisher initialized",
		"topic", cfg.EventsTopic,
		"dlq_topic", cfg.EventsDLQTopic,
	)

	return &kafkaPublisher{
		producer: producer,
		log:      cfg.Log,
	}, nil
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg := kafka.NewMessage().
		WithKey(event.PlotID).
		WithValue(event).
		WithEventID("").
		WithEventType(event.Type).
		WithSource(Source).
		Build()

	// Bounded publish so a slow broker cannot hold up request handlers.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.producer.Publish(pubCtx, msg); err != nil {
		p.log.Error("Failed to publish lifecycle event",
			"event_type", event.Type,
			"plot_id", event.PlotID,
			"error", err,
		)
	}
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) {}

func (noopPublisher) Close() error { return nil }
