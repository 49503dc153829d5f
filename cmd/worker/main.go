package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"videohub/internal/app"
	"videohub/internal/config"
	"videohub/internal/database"
	"videohub/internal/events"
	"videohub/internal/metrics"
	"videohub/internal/processing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const queueSource = "queue"

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	log := config.NewLogger(cfg)

	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	pipeline, err := app.NewProcessing(ctx, cfg, db, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up processing")
	}
	defer pipeline.Close()

	consumer, err := events.NewConsumer(events.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.NotificationsTopic,
		GroupID: cfg.Kafka.GroupID,
		Handler: notificationHandler(pipeline.Service, log),
		Logger:  log,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil {
		log.WithError(err).Error("Consumer stopped")
	}
	log.Info("Worker stopped")
}

// notificationHandler drops notifications that can never succeed and returns
// transient failures so the consumer retries them before moving on.
func notificationHandler(svc *processing.Service, log logrus.FieldLogger) events.MessageHandler {
	return &events.TypedMessageHandler[events.ProcessingNotification]{
		Validate: func(msg *events.ProcessingNotification) bool {
			if _, err := uuid.Parse(msg.VideoID); err != nil {
				log.WithField("video_id", msg.VideoID).Warn("Dropping notification with invalid video id")
				metrics.ProcessingOutcomes.WithLabelValues(queueSource, metrics.OutcomeInvalidPayload).Inc()
				return false
			}
			return true
		},
		Process: func(ctx context.Context, msg *events.ProcessingNotification) error {
			_, err := svc.Process(ctx, msg.VideoID)
			metrics.ProcessingOutcomes.WithLabelValues(queueSource, processing.Outcome(err)).Inc()

			entry := log.WithField("video_id", msg.VideoID)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, processing.ErrVideoNotFound), errors.Is(err, processing.ErrAlreadyProcessed):
				entry.WithError(err).Info("Dropping notification")
				return nil
			default:
				return err
			}
		},
		AlwaysMark: true,
		Logger:     log,
	}
}
