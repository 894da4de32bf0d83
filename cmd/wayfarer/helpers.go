package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/wayfarerhq/wayfarer/internal/common"
	"github.com/wayfarerhq/wayfarer/internal/config"
	"github.com/wayfarerhq/wayfarer/internal/model"
	"github.com/wayfarerhq/wayfarer/internal/service"
	"github.com/wayfarerhq/wayfarer/internal/storage"
)

// scenicDensityKey is the storage key holding the persisted density setting.
const scenicDensityKey = "settings.scenic_density"

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/wayfarer/wayfarer.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// A freshly-released lock from a previous instance can make the first
	// open fail; retry briefly before giving up.
	var store *storage.SQLiteStorage
	err := common.WithRetry(ctx, func() error {
		var openErr error
		store, openErr = storage.NewSQLiteStorage(dbPath)
		if openErr != nil {
			return &common.RetryableError{Err: openErr, Retryable: true}
		}
		return nil
	}, service.RetryOptions{MaxAttempts: 3})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// loadDensity reads the persisted scenic density, defaulting to normal
// when nothing is stored yet.
func loadDensity(ctx context.Context, store service.Storage) model.ScenicDensity {
	raw, err := store.Get(ctx, scenicDensityKey)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			common.LogError(err, "failed to load scenic density, using normal", nil)
		}
		return model.DensityNormal
	}

	density, err := parseDensity(raw)
	if err != nil {
		common.LogError(err, "ignoring stored scenic density", common.Fields{"value": raw})
		return model.DensityNormal
	}
	return density
}

func parseDensity(raw string) (model.ScenicDensity, error) {
	switch model.ScenicDensity(raw) {
	case model.DensityLow, model.DensityNormal, model.DensityHigh:
		return model.ScenicDensity(raw), nil
	default:
		return "", fmt.Errorf("invalid scenic density %q (want low, normal, or high)", raw)
	}
}
