package workflow

import (
	"context"

	"hopper/internal/catalog"
	"hopper/internal/logging"
	"hopper/internal/parser"
)

// StatusSummary is a point-in-time snapshot of workflow state for the status
// API and CLI.
type StatusSummary struct {
	Running      bool
	LastError    string
	LastJob      *catalog.Job
	JobStats     map[catalog.JobStatus]int
	ParserHealth []parser.Health
}

// Status reports current workflow state, queue counts, and implementation
// health.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	m.mu.RUnlock()

	stats, err := m.store.JobStats(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}

	summary := StatusSummary{Running: running, JobStats: stats}
	if m.registry != nil {
		summary.ParserHealth = m.registry.Health(ctx)
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		jobCopy := *lastJob
		summary.LastJob = &jobCopy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *catalog.Job) {
	m.mu.Lock()
	if job == nil {
		m.lastJob = nil
	} else {
		jobCopy := *job
		m.lastJob = &jobCopy
	}
	m.mu.Unlock()
}
