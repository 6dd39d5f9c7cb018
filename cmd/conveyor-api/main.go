// Conveyor API — HTTP-вход для продюсеров без AMQP-клиента.
//
// Endpoints:
//   - POST /api/v1/messages — публикация сообщения
//   - POST /api/v1/logs     — строка журнала в logs-queue
//   - GET  /api/v1/logs     — последние строки журнала
//   - GET  /api/v1/queues   — топология очередей
//   - GET  /healthz, /metrics
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/api"
	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_api_http_requests_total",
		Help: "Total HTTP requests handled by conveyor_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Журнал необязателен: без БД API только публикует
	var journal api.LogJournal
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Warn("database not available, GET /api/v1/logs disabled", "error", err)
	} else {
		defer pool.Close()
		journal = repo.NewLogRepo(pool)
		logger.Info("connected to database")
	}

	mqConn, err := mq.NewConnection(cfg.RabbitMQ, cfg.Topology, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Publisher: mq.NewPublisher(mqConn, logger),
		Journal:   journal,
		Topology:  mqConn.Topology(),
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		if mqConn.IsClosed() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "broker connection closed")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения или закрытие соединения брокером
	select {
	case <-ctx.Done():
	case <-mqConn.Done():
		logger.Error("RabbitMQ connection closed")
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
