package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/config"
	infradatabase "github.com/yokitheyo/imagetransfer/internal/infrastructure/database"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/fetcher"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/kafka"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/processor"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/storage"
	"github.com/yokitheyo/imagetransfer/internal/metrics"
	"github.com/yokitheyo/imagetransfer/internal/repository/postgres"
	"github.com/yokitheyo/imagetransfer/internal/usecase"
	"github.com/yokitheyo/imagetransfer/internal/worker"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Image Transfer Worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	config.ApplyLogLevel(cfg.Logging)

	database, err := infradatabase.Connect(ctx, &cfg.Database)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database after all retries")
	}
	defer infradatabase.Close(database)

	// the API owns the schema; a failure here usually means it already ran
	if err := infradatabase.RunMigrations(database, cfg.Migrations.Path); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Migrations warning")
	}

	blobStore, err := storage.Connect(ctx, &cfg.Storage)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	repo := postgres.NewTransferRepository(database, cfg.Database.QueryStrategy())
	transferUsecase := usecase.NewTransferUsecase(
		fetcher.NewFetcher(&cfg.Fetch),
		blobStore,
		processor.NewImageProcessor(&cfg.Processing),
		&cfg.Transfer,
	)
	processorUsecase := usecase.NewProcessorUsecase(repo, transferUsecase)
	transferWorker := worker.NewTransferWorker(processorUsecase)

	kafkaConsumer := kafka.NewConsumer(&cfg.Kafka, transferWorker.HandleTransferTask)
	defer kafkaConsumer.Close()

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metrics.Handler()}
		go func() {
			zlog.Logger.Info().Str("addr", cfg.Server.MetricsAddr).Msg("Starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zlog.Logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := kafkaConsumer.Start(ctx); err != nil {
			zlog.Logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	select {
	case <-done:
	case <-time.After(time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second):
		zlog.Logger.Warn().Msg("Kafka consumer did not stop in time")
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	zlog.Logger.Info().Msg("Worker shutdown complete")
}
