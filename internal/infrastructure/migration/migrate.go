package migration

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	// Blank import required for PostgreSQL driver registration for migrations
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"golang.org/x/exp/slog"

	"fieldsync/internal/app/server/config"
)

// ErrDirtySchema - прошлая миграция прервалась, схема entity_records требует ручной правки
var ErrDirtySchema = errors.New("entity schema is dirty")

// Migrator — та часть migrate.Migrate, которой пользуется сервер
type Migrator interface {
	Up() error
	Version() (uint, bool, error)
	Close() (error, error)
}

// MigrationEngine — фабрика мигратора (в тестах без ФС и БД)
type MigrationEngine func(sourceURL, databaseURL string) (Migrator, error)

// Migration приводит схему хранилища записей к последней версии
type Migration struct {
	cfg    *config.Config
	engine MigrationEngine
	log    *slog.Logger
}

func NewMigration(conf *config.Config, engine MigrationEngine, log *slog.Logger) *Migration {
	if engine == nil {
		engine = DefaultEngine
	}
	return &Migration{
		cfg:    conf,
		engine: engine,
		log:    log.With(slog.String("component", "migration")),
	}
}

// DefaultEngine — реальная реализация для продакшена
func DefaultEngine(sourceURL, databaseURL string) (Migrator, error) {
	return migrate.New(sourceURL, databaseURL)
}

// Up применяет миграции и возвращает итоговую версию схемы
func (mg *Migration) Up() (version uint, err error) {
	m, err := mg.engine("file://"+mg.cfg.DB.Migrations, mg.cfg.DB.DatabaseURI)
	if err != nil {
		return 0, err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			err = errors.Join(err, fmt.Errorf("migration source: %w", serr))
		}
		if dberr != nil {
			err = errors.Join(err, fmt.Errorf("migration database: %w", dberr))
		}
	}()

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migration up: %w", upErr)
	}

	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		mg.log.Warn("no migrations found", "source", mg.cfg.DB.Migrations)
		return 0, nil
	case verr != nil:
		return 0, fmt.Errorf("migration version: %w", verr)
	case dirty:
		return version, fmt.Errorf("%w: version %d", ErrDirtySchema, version)
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		mg.log.Debug("entity schema is up to date", "version", version)
	} else {
		mg.log.Info("entity schema migrated", "version", version)
	}
	return version, nil
}
