package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/parser"
	"hopper/internal/watch"
	"hopper/internal/workflow"
)

// Daemon hosts the background subsystems and enforces single-instance
// execution through a lock file next to the catalog database.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *catalog.Store
	chains   *chain.Manager
	registry *parser.Registry
	workflow *workflow.Manager
	watcher  *watch.Watcher
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Watching     bool
	Workflow     workflow.StatusSummary
	DBPath       string
	LockFilePath string
}

// New constructs a daemon around initialized dependencies. The watcher may be
// nil; everything else is required.
func New(cfg *config.Config, store *catalog.Store, chains *chain.Manager, registry *parser.Registry, wf *workflow.Manager, watcher *watch.Watcher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || chains == nil || registry == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, chain manager, registry, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "hopperd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		chains:   chains,
		registry: registry,
		workflow: wf,
		watcher:  watcher,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and brings up the workflow manager, the
// watcher, and the HTTP API in that order. A partial start rolls back.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another hopper daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	rollback := func() {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
	}

	if err := d.workflow.Start(runCtx); err != nil {
		rollback()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.watcher != nil {
		if err := d.watcher.Start(runCtx); err != nil {
			d.workflow.Stop()
			rollback()
			return fmt.Errorf("start watcher: %w", err)
		}
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			if d.watcher != nil {
				d.watcher.Stop()
			}
			d.workflow.Stop()
			rollback()
			return fmt.Errorf("start api: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("hopper daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop drains the subsystems and releases the daemon lock. Intake stops
// first so the worker never drains into a still-filling queue.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.watcher.Stop()
	d.workflow.Stop()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("hopper daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the address the HTTP API is listening on, or empty when the
// API is disabled or not started.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Watching:     d.watcher.Running(),
		Workflow:     d.workflow.Status(ctx),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
