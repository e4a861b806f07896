package database

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(strings.TrimSuffix(format, "\n"), v...)
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

type MigrationConfig struct {
	// Migrations holds one directory of *.up.sql / *.down.sql files per dialect.
	Migrations   fs.FS
	Version      uint
	Force        int
	AutoRollback bool // If enabled, a dirty database is forced back to the previous version
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

// Migrate applies the embedded migrations for db's dialect.
func (ms *MigrationService) Migrate(db DB) error {
	dir := string(db.Dialect())

	source, err := iofs.New(ms.config.Migrations, dir)
	if err != nil {
		return fmt.Errorf("load %s migrations: %w", dir, err)
	}

	driver, err := ms.databaseDriver(db)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migration driver")
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, dir, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}

	m.Log = MigrationLogger{Logger: ms.logger}

	return ms.runMigration(m, dir)
}

func (ms *MigrationService) databaseDriver(db DB) (migratedb.Driver, error) {
	switch db.Dialect() {
	case DialectPostgres:
		return migratepg.WithInstance(db.SQLDB(), &migratepg.Config{})
	case DialectSQLite:
		return migratesqlite.WithInstance(db.SQLDB(), &migratesqlite.Config{})
	default:
		return nil, fmt.Errorf("no migration driver for dialect %q", db.Dialect())
	}
}

func (ms *MigrationService) runMigration(m *migrate.Migrate, dir string) error {
	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	version, _, versionErr := m.Version()
	if versionErr != nil && !errors.Is(versionErr, migrate.ErrNilVersion) {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
	}

	startTime := time.Now()

	var migrationErr error
	if ms.config.Version != 0 {
		migrationErr = m.Migrate(ms.config.Version)
	} else {
		migrationErr = m.Up()
	}

	ms.logger.Infof("Database migrations completed in %v", time.Since(startTime))

	return ms.handleMigrationError(m, migrationErr, version, dir)
}

func (ms *MigrationService) handleMigrationError(m *migrate.Migrate, err error, previousVersion uint, dir string) error {
	if err == nil {
		ms.logger.Info("Successfully applied migrations")
		return nil
	}

	if errors.Is(err, migrate.ErrNoChange) {
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	// the database is ahead of the embedded files, usually after a rollback
	if strings.Contains(err.Error(), "no migration found for version") {
		latest, latestErr := latestVersion(ms.config.Migrations, dir)
		if latestErr != nil {
			ms.logger.WithError(latestErr).Error("Failed to get latest migration version")
			return err
		}
		ms.logger.Warnf("No migration found for version %d. Forcing latest embedded version %d", previousVersion, latest)
		if forceErr := m.Force(latest); forceErr != nil {
			ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", latest)
			return forceErr
		}
		return nil
	}

	ms.logger.WithError(err).Errorf("Migration failed with error: %v", err)

	version, dirty, versionErr := m.Version()
	if versionErr != nil && !errors.Is(versionErr, migrate.ErrNilVersion) {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
		return err
	}

	if ms.config.AutoRollback && dirty {
		if previousVersion == 0 && version > 0 {
			previousVersion = version - 1
		}
		ms.logger.Warnf("Database is dirty at version %d. Reverting to version %d", version, previousVersion)
		if forceErr := m.Force(int(previousVersion)); forceErr != nil {
			ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", previousVersion)
			return forceErr
		}
	}

	// still fail startup after a rollback
	return err
}

var upMigrationPattern = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

func latestVersion(fsys fs.FS, dir string) (int, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, err
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := upMigrationPattern.FindStringSubmatch(entry.Name())
		if len(matches) > 1 {
			version, err := strconv.Atoi(matches[1])
			if err != nil {
				return 0, err
			}
			versions = append(versions, version)
		}
	}

	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files found in %s", dir)
	}

	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
