// Package container wires application dependencies with ordered
// initialization and reverse-order teardown.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fieldops/jobflow/internal/application/bus"
	"github.com/fieldops/jobflow/internal/application/service"
	"github.com/fieldops/jobflow/internal/config"
	"github.com/fieldops/jobflow/internal/infrastructure/persistence/sqlite"
	"github.com/fieldops/jobflow/pkg/database"
)

// Container manages application dependencies and their lifecycle
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle

	// Application
	changes    *bus.Bus
	jobService service.JobService

	// Lifecycle
	mu     sync.RWMutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// New creates a container from configuration. Call Start to initialize.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes components in dependency order:
// database and repositories, then the change bus, then services.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	_, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = dbBundle.DB
	c.txManager = dbBundle.TransactionMgr
	c.logger.Info("Database initialized")

	repos, err := ProvideRepositories(c.txManager, c.logger)
	if err != nil {
		c.db.Close()
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	c.repositories = repos

	c.changes = ProvideChangeBus(c.logger)
	c.logger.Info("Change bus initialized")

	svc, err := ProvideJobService(c.repositories, c.txManager, c.changes, c.logger)
	if err != nil {
		c.db.Close()
		return fmt.Errorf("failed to initialize job service: %w", err)
	}
	c.jobService = svc
	c.logger.Info("Job service initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close shuts down components in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.changes != nil {
		if err := c.changes.Close(); err != nil {
			c.logger.Error("Failed to close change bus", zap.Error(err))
			errs = append(errs, fmt.Errorf("close change bus: %w", err))
		} else {
			c.logger.Info("Change bus closed")
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// JobService returns the job mutation service
func (c *Container) JobService() service.JobService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jobService
}

// Changes returns the change notification bus
func (c *Container) Changes() *bus.Bus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changes
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Health reports component health
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.db != nil {
		if err := c.db.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.changes != nil {
		status.Components["change_bus"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("subscribers: %d", c.changes.SubscriberCount()),
		}
	} else {
		status.Components["change_bus"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.jobService != nil {
		status.Components["job_service"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["job_service"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}
