package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"hopper/internal/logging"
)

// Start launches the queue worker. Jobs a previous daemon left in running
// state are returned to pending first so a crash never strands work.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	logger := logging.NewComponentLogger(m.logger, "workflow")
	if reset, err := m.store.ResetStuckJobs(runCtx); err != nil {
		logger.Warn("failed to requeue jobs left running by a previous daemon",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check catalog database access"),
		)
	} else if reset > 0 {
		logger.Info("requeued jobs left running by a previous daemon",
			logging.Int64("jobs", reset),
			logging.String(logging.FieldEventType, "stuck_jobs_reset"),
		)
	}

	go m.run(runCtx, logger)
	return nil
}

// Stop halts processing and waits for any in-flight job to wind down.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, logger *slog.Logger) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.NextPendingJob(ctx)
		if err != nil {
			m.backoffAfterError(ctx, logger, "failed to fetch next queue job", err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}
		if err := m.processJob(ctx, logger, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// backoffAfterError records a catalog access failure and sleeps the retry
// interval so a dead database does not spin the worker.
func (m *Manager) backoffAfterError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	m.setLastError(err)
	logger.Error(msg,
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_io_failed"),
		logging.String(logging.FieldErrorHint, "check catalog database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
