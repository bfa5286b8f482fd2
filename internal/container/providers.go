package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fieldops/jobflow/internal/application/bus"
	"github.com/fieldops/jobflow/internal/application/port"
	"github.com/fieldops/jobflow/internal/application/service"
	"github.com/fieldops/jobflow/internal/config"
	"github.com/fieldops/jobflow/internal/infrastructure/persistence/repository"
	"github.com/fieldops/jobflow/internal/infrastructure/persistence/sqlite"
	"github.com/fieldops/jobflow/pkg/database"
)

// DatabaseBundle holds database-related components
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups the persistence ports
type RepositoryBundle struct {
	Jobs   port.JobRepository
	Events port.EventRepository
}

// ProvideDatabase opens the database, runs pending migrations and wraps
// the connection in the transaction manager.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.MigrationsDir != "" {
		migrator := database.NewMigrator(db, cfg.MigrationsDir, logger)
		if err := migrator.Run(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates the job and event repositories
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Jobs:   repository.NewJobRepository(db, logger),
		Events: repository.NewEventRepository(db, logger),
	}, nil
}

// ProvideChangeBus creates the in-process change notification bus
func ProvideChangeBus(logger *zap.Logger) *bus.Bus {
	return bus.New(bus.WithLogger(NewKVLogger(logger)))
}

// ProvideJobService wires the mutation service
func ProvideJobService(repos *RepositoryBundle, txManager *sqlite.DB, changes *bus.Bus, logger *zap.Logger) (service.JobService, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if txManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if changes == nil {
		return nil, fmt.Errorf("change bus is required")
	}

	return service.NewJobService(repos.Jobs, repos.Events, txManager, changes, NewKVLogger(logger)), nil
}

// KVLogger adapts a zap logger to the key/value logging interface the
// application layer depends on.
type KVLogger struct {
	sugar *zap.SugaredLogger
}

// NewKVLogger wraps a zap logger
func NewKVLogger(logger *zap.Logger) *KVLogger {
	return &KVLogger{sugar: logger.Sugar()}
}

// Info logs at info level with key/value pairs
func (l *KVLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Error logs at error level with key/value pairs
func (l *KVLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}
