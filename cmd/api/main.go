package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/config"
	httpHandler "github.com/yokitheyo/imagetransfer/internal/handler/http"
	"github.com/yokitheyo/imagetransfer/internal/handler/middleware"
	infradatabase "github.com/yokitheyo/imagetransfer/internal/infrastructure/database"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/fetcher"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/kafka"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/processor"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/storage"
	"github.com/yokitheyo/imagetransfer/internal/metrics"
	"github.com/yokitheyo/imagetransfer/internal/repository/postgres"
	"github.com/yokitheyo/imagetransfer/internal/usecase"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Image Transfer API Server")

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

	zlog.Logger.Info().Msg("Running database migrations...")
	if err := infradatabase.RunMigrations(database, cfg.Migrations.Path); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Migrations failed")
	}

	blobStore, err := storage.Connect(ctx, &cfg.Storage)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	kafkaProducer := kafka.NewProducer(&cfg.Kafka)
	defer kafkaProducer.Close()

	repo := postgres.NewTransferRepository(database, cfg.Database.QueryStrategy())
	transferUsecase := usecase.NewTransferUsecase(
		fetcher.NewFetcher(&cfg.Fetch),
		blobStore,
		processor.NewImageProcessor(&cfg.Processing),
		&cfg.Transfer,
	)
	jobUsecase := usecase.NewJobUsecase(repo, blobStore, kafkaProducer)
	if _, err := jobUsecase.RequeuePending(ctx, 1000); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to requeue pending transfers")
	}

	engine := ginext.New("release")
	engine.Use(
		middleware.RequestIDMiddleware(),
		middleware.ErrorHandlerMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.CORSMiddleware(),
	)

	engine.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, ginext.H{"status": "ok", "storage": blobStore.Name()})
	})

	engine.GET("/metrics", func(c *ginext.Context) {
		metrics.Handler().ServeHTTP(c.Writer, c.Request)
	})

	httpHandler.NewTransferHandler(transferUsecase, jobUsecase, blobStore).RegisterRoutes(engine)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	} else {
		zlog.Logger.Info().Msg("HTTP server stopped gracefully")
	}

	zlog.Logger.Info().Msg("API shutdown complete")
}
