// Conveyor Worker — обрабатывает сообщения очередей платформы.
//
// Worker:
//   - Потребляет очереди из WORKER_QUEUES (по умолчанию все)
//   - Передаёт сообщение воркеру его типа
//   - Планирует повтор через очередь задержки, если воркер попросил
//   - Отдаёт /healthz и /metrics на WORKER_PORT
//
// Workers масштабируются горизонтально: несколько процессов на одной очереди
// делят сообщения между собой.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/hostapi"
	"github.com/shaiso/Conveyor/internal/mailer"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/retry"
	"github.com/shaiso/Conveyor/internal/telemetry"
	"github.com/shaiso/Conveyor/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to prepare database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.RabbitMQ, cfg.Topology, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err, "config", cfg.RabbitMQ.Redacted())
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected", "host", cfg.RabbitMQ.Host, "exchange", cfg.Topology.ExchangeName())

	logger.Debug("topology", "layout", cfg.Topology.Info())

	publisher := mq.NewPublisher(mqConn, logger)

	// Воркеры
	registry, err := worker.NewDefaultRegistry(worker.Deps{
		Host:      hostapi.NewClient(cfg.HostAPI),
		Publisher: publisher,
		Commits:   repo.NewCommitRepo(pool),
		Mailer:    mailer.NewSMTP(cfg.Mailer, logger),
		Journal:   repo.NewLogRepo(pool),
		TempDir:   cfg.Worker.TempDir,
	})
	if err != nil {
		logger.Error("failed to build worker registry", "error", err)
		os.Exit(1)
	}

	logger.Info("workers registered", "types", registry.Types())

	cycle := retry.NewCycle(publisher, cfg.Retry, logger)
	policy := cycle.Policy()
	logger.Info("retry policy",
		"backoff", policy.Backoff,
		"default_delay", policy.DefaultDelay,
		"max_attempts", policy.MaxAttempts,
	)

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		Registry: registry,
		Retrier:  cycle,
		Logger:   logger,
	})

	// Отдельный канал: Qos и поток доставок не делят канал с публикацией
	ch, err := mqConn.OpenChannel()
	if err != nil {
		logger.Error("failed to open consumer channel", "error", err)
		os.Exit(1)
	}

	consumer := mq.NewConsumer(ch, logger, mq.ConsumerConfig{
		Queues:   cfg.Worker.Queues,
		Handler:  dispatcher.Handle,
		Logs:     publisher,
		Prefetch: cfg.Worker.Prefetch,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if mqConn.IsClosed() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("broker connection closed"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Worker.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Потребление до сигнала или закрытия соединения брокером
	exitCode := 0
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("conveyor-worker stopped")
	if exitCode != 0 {
		mqConn.Close()
		pool.Close()
		os.Exit(exitCode)
	}
}
