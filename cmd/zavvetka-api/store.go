package main

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/config"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/database"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// openNoteStore builds the configured backend. The returned closer is always non-nil.
func openNoteStore(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (store.NoteStore, func(), error) {
	noop := func() {}
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("notes are kept in memory and will not survive a restart")
		return store.NewMemoryStore(), noop, nil
	case config.StoreDriverSQLite:
		db, err := database.OpenSQLite(cfg.DatabasePath, logger)
		if err != nil {
			return nil, noop, err
		}
		return gormNoteStore(db, logger)
	case config.StoreDriverPostgres:
		db, err := database.OpenPostgres(cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, noop, err
		}
		return gormNoteStore(db, logger)
	case config.StoreDriverRedis:
		redisStore, err := store.NewRedisStore(ctx, store.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, noop, err
		}
		return redisStore, func() {
			if err := redisStore.Close(); err != nil {
				logger.Warn("redis close failed", zap.Error(err))
			}
		}, nil
	case config.StoreDriverS3:
		s3Store, err := store.NewS3Store(store.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, noop, err
		}
		return s3Store, noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func gormNoteStore(db *gorm.DB, logger *zap.Logger) (store.NoteStore, func(), error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, func() {}, err
	}
	closer := func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("database close failed", zap.Error(err))
		}
	}
	gormStore, err := store.NewGormStore(db, time.Now)
	if err != nil {
		closer()
		return nil, func() {}, err
	}
	return gormStore, closer, nil
}
