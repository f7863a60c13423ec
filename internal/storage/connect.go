package storage

import (
	"context"
	"fmt"

	"roomsync/backend/internal/config"
	"roomsync/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens postgres and, when redis_addr is set, redis, then migrates the rooms table.
// The returned redis client is nil when the snapshot tier is disabled.
func Connect(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.Mode == "debug" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := db.AutoMigrate(&models.Room{}); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if cfg.RedisAddr == "" {
		log.Warn().Str("module", "storage").Msg("redis_addr is empty, snapshot tier disabled")
		return db, nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	log.Info().Str("module", "storage").Str("redis", cfg.RedisAddr).Msg("database and redis connections established, migrations complete")
	return db, rdb, nil
}

// Close releases both connections. rdb may be nil.
func Close(db *gorm.DB, rdb *redis.Client) {
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Str("module", "storage").Msg("failed to close redis")
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Warn().Err(err).Str("module", "storage").Msg("failed to close postgres")
		}
	}
}
