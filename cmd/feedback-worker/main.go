package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/classifier"
	"finsight/internal/cli"
	"finsight/internal/log"
	"finsight/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the feedback worker")
		os.Exit(1)
	}

	cls := classifier.NewClient(classifier.Config{
		BaseURL:     cfg.ClassifierURL,
		Timeout:     cfg.ClassifierTimeout,
		PingTimeout: cfg.ClassifierPingTimeout,
	}, logger)
	fw := worker.NewFeedbackWorker(cls, logger)

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, nil)

	broker, err := amqp.NewClientWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 10, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer broker.Close()

	logger.Info("Starting feedback worker",
		log.FieldOperation, log.OpStartup,
		"queue", cfg.AMQPQueue,
		"classifier_available", cls.Ping(ctx).Available)

	err = broker.ConsumeFeedback(ctx, func(ctx context.Context, msg *amqp.FeedbackMessage) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.ClassifierTimeout)
		defer cancel()
		return fw.HandleFeedbackMessage(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	stats := fw.Stats()
	logger.Info("Feedback worker stopped",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"stale", stats.Stale)
}
