package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/notifications"
	"hopper/internal/parser"
)

// Manager owns the queue worker. All coordination state lives here; the
// per-job logic hangs off processJob.
type Manager struct {
	cfg      *config.Config
	store    *catalog.Store
	chains   *chain.Manager
	registry *parser.Registry
	logger   *slog.Logger
	notifier notifications.Service

	pollInterval time.Duration
	jobTimeout   time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *catalog.Job
}

// NewManager constructs a workflow manager wired to the shared catalog, chain
// manager, and implementation registry. Notifications are derived from the
// config; tests that need to observe them use NewManagerWithNotifier.
func NewManager(cfg *config.Config, store *catalog.Store, chains *chain.Manager, registry *parser.Registry, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, chains, registry, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with an explicit
// notification service.
func NewManagerWithNotifier(cfg *config.Config, store *catalog.Store, chains *chain.Manager, registry *parser.Registry, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		chains:       chains,
		registry:     registry,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		jobTimeout:   time.Duration(cfg.Workflow.JobTimeout) * time.Second,
	}
}
