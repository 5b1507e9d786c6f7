package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"canvasConverter/api/cache"
	"canvasConverter/api/config"
	"canvasConverter/api/handlers"
	"canvasConverter/api/kafka"
	"canvasConverter/api/middleware"
	"canvasConverter/api/service"
	worker "canvasConverter/worker/service"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Env)
	defer logger.Sync()

	logger.Info("API Service starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	var store service.ProgressStore
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(context.Background(), cfg.RedisAddr)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer client.Close()
		store = cache.NewProgressStore(client)
		logger.Info("Progress tracking enabled", zap.String("redis", cfg.RedisAddr))
	}

	var producer kafka.Producer = kafka.NopProducer{}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Fatal("Failed to create kafka producer", zap.Strings("brokers", cfg.KafkaBrokers), zap.Error(err))
		}
		producer = p
		logger.Info("Batch events enabled", zap.String("topic", cfg.KafkaTopic))
	}
	defer producer.Close()

	processor := worker.NewProcessor(logger, worker.Options{
		ScratchDir: cfg.ScratchDir,
		Workers:    cfg.WorkerCount,
		JobTimeout: cfg.JobTimeout,
	})
	svc := service.NewConvertService(processor, store, producer, cfg.KafkaTopic, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(svc, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newRouter(svc handlers.ConvertService, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	handlers.NewConvertHandler(svc, cfg.MaxUploadSize, logger).Register(r)

	r.Use(middleware.Recovery(logger), middleware.Logging(logger))
	return middleware.TraceID(r)
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
