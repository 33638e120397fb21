package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Migrate applies every pending up migration.
func Migrate(s *SQLStore, logger *zap.Logger) error {
	m, closeFn, err := newMigrator(s)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied",
		zap.String("dialect", string(s.dialect)),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

// MigrateDown reverts every migration. Used by the reset tool.
func MigrateDown(s *SQLStore) error {
	m, closeFn, err := newMigrator(s)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("revert migrations: %w", err)
	}
	return nil
}

func newMigrator(s *SQLStore) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrationsFS, "migrations/"+string(s.dialect))
	if err != nil {
		return nil, nil, fmt.Errorf("create migration source: %w", err)
	}

	switch s.dialect {
	case SQLite:
		// Reuse the open pool: :memory: databases live on that one connection.
		// Closing the migrator would close the pool, so only the source is closed.
		driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("create sqlite migration driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
		if err != nil {
			return nil, nil, fmt.Errorf("create migrate instance: %w", err)
		}
		return m, func() { _ = src.Close() }, nil
	default:
		m, err := migrate.NewWithSourceInstance("iofs", src, s.url)
		if err != nil {
			return nil, nil, fmt.Errorf("create migrate instance: %w", err)
		}
		return m, func() { _, _ = m.Close() }, nil
	}
}
