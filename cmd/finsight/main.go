package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/budget"
	"finsight/internal/cache"
	"finsight/internal/classifier"
	"finsight/internal/cli"
	"finsight/internal/config"
	"finsight/internal/goal"
	apphttp "finsight/internal/http"
	"finsight/internal/insight"
	"finsight/internal/log"
	"finsight/internal/nudge"
	"finsight/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	clsCfg := classifier.Config{
		BaseURL:     cfg.ClassifierURL,
		Timeout:     cfg.ClassifierTimeout,
		PingTimeout: cfg.ClassifierPingTimeout,
	}
	var broker *amqp.Client
	if cfg.FeedbackDispatch == config.DispatchAMQP {
		var err error
		broker, err = amqp.NewClientWithRetry(context.Background(), cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer broker.Close()
		clsCfg.Dispatcher = broker
	}
	cls := classifier.NewClient(clsCfg, logger)

	txService := services.NewTransactionService(repo, cls, logger)
	tracker := budget.NewTracker(repo, logger)
	goals := goal.NewEngine(repo, logger)
	generator := insight.NewGenerator(repo, tracker, insight.ThresholdsFromConfig(cfg.Insights), logger)
	aggregator := nudge.NewAggregator(tracker, generator, goals, logger)

	caches := cache.NewManager(logger)
	caches.Register(txService.CategoryCache())
	caches.StartCleanup(10 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions: txService,
		Budgets:      tracker,
		Goals:        goals,
		Insights:     generator,
		Dashboard:    aggregator,
		Classifier:   cls,
		DB:           repo,

		WritesPerMinute: cfg.WritesPerMinute,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		cls.Drain()
	})

	health := cls.Ping(ctx)
	logger.Info("Starting finsight server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"feedback_dispatch", cfg.FeedbackDispatch,
		"classifier_available", health.Available)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
