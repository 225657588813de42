package database

import (
	"context"
	"fmt"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imagetransfer/internal/config"
	"github.com/yokitheyo/imagetransfer/internal/helpers"
)

// Connect opens the master and slave pools described by cfg, retrying until
// the master answers a ping or the attempts run out.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*dbpg.DB, error) {
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSec) * time.Second,
	}
	slaves := helpers.SplitAndTrim(cfg.Slaves, ",")

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	delay := time.Duration(cfg.ConnectRetryDelaySec) * time.Second
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		db, err := open(ctx, cfg.DSN, slaves, opts)
		if err == nil {
			zlog.Logger.Info().Int("attempt", attempt).Int("slaves", len(slaves)).Msg("Database connection established")
			return db, nil
		}
		lastErr = err
		zlog.Logger.Warn().Err(err).Int("attempt", attempt).Int("retries", retries).Msg("database connection attempt failed")

		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to database: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("connect to database after %d attempts: %w", retries, lastErr)
}

func open(ctx context.Context, dsn string, slaves []string, opts *dbpg.Options) (*dbpg.DB, error) {
	db, err := dbpg.New(dsn, slaves, opts)
	if err != nil {
		return nil, err
	}
	if db.Master == nil {
		return nil, fmt.Errorf("master connection is nil")
	}
	if err := db.Master.PingContext(ctx); err != nil {
		Close(db)
		return nil, fmt.Errorf("ping master: %w", err)
	}
	return db, nil
}

// Close releases the master and every slave pool.
func Close(db *dbpg.DB) {
	if db == nil {
		return
	}
	if db.Master != nil {
		if err := db.Master.Close(); err != nil {
			zlog.Logger.Warn().Err(err).Msg("failed to close master connection")
		}
	}
	for _, s := range db.Slaves {
		if s != nil {
			_ = s.Close()
		}
	}
}
