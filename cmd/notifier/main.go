package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"plotbook/internal/events"
	"plotbook/pkg/config"
	"plotbook/pkg/kafka"
	kafka_config "plotbook/pkg/kafka/config"
	kafka_middleware "plotbook/pkg/kafka/middleware"
	"plotbook/pkg/logger"
)

const (
	ServiceName   = "notifier"
	ConsumerGroup = "plotbook-notifier"
)

// The notifier bridges lifecycle events to whatever delivery channel sits
// behind it. The sink here is log-backed; real delivery (email, SMS, broker
// portal pushes) is an external collaborator fed from the same topic.
func main() {
	cfg := config.Load(ServiceName)

	kafkaCfg := kafka_config.Load()

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.EventsTopic,
		ConsumerGroup,
		cfg.EventsDLQTopic,
		notifyHandler(cfg.Log),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(kafka_middleware.MetricsConsumerMiddleware())

	ctx, cancel := context.WithCancel(context.Background())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		cfg.Log.Info("Shutdown signal received", "signal", sig)
		cancel()
	}()

	cfg.Log.Info("Notifier started", "topic", cfg.EventsTopic, "group", ConsumerGroup)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	cfg.Log.Info("Notifier stopped")
}

func notifyHandler(log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event events.Event
		if err := msg.DecodeValue(&event); err != nil {
			log.Error("Failed to decode lifecycle event",
				"event_id", msg.GetEventID(),
				"error", err,
			)
			return kafka.NewPermanentError("invalid event payload", err)
		}

		log.Info("Lifecycle notification",
			"type", event.Type,
			"plot_id", event.PlotID,
			"project_id", event.ProjectID,
			"hold_id", event.HoldID,
			"booking_id", event.BookingID,
			"broker_id", event.BrokerID,
			"reason", event.Reason,
		)
		return nil
	}
}
