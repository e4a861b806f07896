package app

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/contact"
	"github.com/Ramsey-B/fern/internal/services/identify"
	"github.com/Ramsey-B/fern/migrations"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/identity"
)

// OpenStore connects to the configured contact store and applies migrations.
func OpenStore(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (database.DB, error) {
	connCfg, err := cfg.Database()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, connCfg, logger)
	if err != nil {
		return nil, err
	}

	if err := Migrate(cfg, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies the embedded migrations for the store's dialect.
func Migrate(cfg *config.Config, db database.DB, logger ectologger.Logger) error {
	migrator := database.NewMigrationService(logger, &database.MigrationConfig{
		Migrations:   migrations.FS,
		Version:      uint(max(cfg.DatabaseMigrationVersion, 0)),
		Force:        cfg.DatabaseMigrationForce,
		AutoRollback: cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrator.Migrate(db); err != nil {
		return fmt.Errorf("migrate %s store: %w", db.Dialect(), err)
	}
	return nil
}

// NewService builds the identify service on db. A nil emitter disables events.
func NewService(db database.DB, c cache.Cache, emitter identify.EventEmitter, logger ectologger.Logger) *identify.Service {
	repo := contact.NewRepository(db, logger)
	engine := identity.NewEngine(repo, logger)
	return identify.NewService(engine, repo, c, emitter, logger)
}
