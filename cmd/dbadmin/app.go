package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/soochol/dbadmin/internal/config"
	"github.com/soochol/dbadmin/internal/db"
	"github.com/soochol/dbadmin/internal/dbadmin/ports"
	"github.com/soochol/dbadmin/internal/remote"
	"github.com/soochol/dbadmin/internal/repository"
	"github.com/soochol/dbadmin/internal/secrets"
	"github.com/soochol/dbadmin/internal/services"
)

var configPath string

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadDefault()
}

// backend is the data-access side of the process: either a remote client or
// the embedded service with its storage.
type backend struct {
	access   ports.DataAccess
	embedded *services.DatabaseService
	tracking repository.TrackingRepository
	closers  []io.Closer
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i].Close())
	}
	return errors.Join(errs...)
}

// openBackend wires storage from cfg. A configured remote URL selects the
// remote client; otherwise the embedded service is backed by PostgreSQL
// when a database URL is set, or memory.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}

	var database *db.DB
	if cfg.Database.URL != "" {
		var err error
		database, err = db.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, database)
		if err := database.Migrate(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		slog.Info("connected to database")
	}

	tracking, err := openTracking(cfg, database)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.tracking = tracking
	if c, ok := tracking.(io.Closer); ok {
		b.closers = append(b.closers, c)
	}

	if cfg.Remote.URL != "" {
		slog.Info("using remote data-access service", "url", cfg.Remote.URL)
		b.access = remote.New(cfg.Remote.URL, cfg.Remote.APIKey, cfg.Remote.Timeout)
		return b, nil
	}

	key, err := secrets.ParseKey(cfg.Security.EncryptionKey)
	if err != nil {
		b.Close()
		return nil, err
	}
	sealer, err := secrets.NewSealer(key)
	if err != nil {
		b.Close()
		return nil, err
	}
	if !sealer.Enabled() {
		slog.Warn("no encryption key configured, secrets are stored in plaintext")
	}

	var repo repository.DatabaseRepository
	mem := repository.NewMemoryDatabaseRepository()
	if database != nil {
		persistent := repository.NewPersistentDatabaseRepository(mem, database)
		if err := persistent.Load(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("load databases: %w", err)
		}
		repo = persistent
	} else {
		repo = mem
	}

	b.embedded = services.NewDatabaseService(repo, sealer, cfg.Engines)
	b.access = b.embedded
	return b, nil
}

func openTracking(cfg *config.Config, database *db.DB) (repository.TrackingRepository, error) {
	if cfg.Tracking.RedisURL != "" {
		repo, err := repository.NewRedisTrackingRepository(cfg.Tracking.RedisURL, cfg.Tracking.Capacity)
		if err != nil {
			return nil, err
		}
		slog.Info("tracking events go to redis")
		return repo, nil
	}
	mem := repository.NewMemoryTrackingRepository(cfg.Tracking.Capacity)
	if database != nil {
		return repository.NewPersistentTrackingRepository(mem, database), nil
	}
	return mem, nil
}
