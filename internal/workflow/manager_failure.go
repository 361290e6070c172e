package workflow

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"hopper/internal/catalog"
	"hopper/internal/logging"
	"hopper/internal/services"
)

// handleJobFailure persists a failed job and parse, classifies the error into
// failed or review, and notifies. Validation, configuration, and not-found
// errors need a human, so they park in review rather than eating retries.
func (m *Manager) handleJobFailure(ctx context.Context, logger *slog.Logger, job *catalog.Job, file *catalog.FileRecord, jobErr error) {
	status := services.FailureStatus(jobErr)
	message := failureMessage(job.Parser, jobErr)

	if _, err := m.store.UpsertParse(ctx, job.FileID, job.Parser, catalog.ParseFailed, "", message); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not record parse failure")
		} else {
			logger.Error("failed to record parse failure", logging.Error(err))
		}
	}
	if err := m.store.FinishJob(ctx, job.ID, status, message); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist job failure")
		} else {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	}

	logger.Error("job failed",
		logging.Error(jobErr),
		logging.String(logging.FieldEventType, "job_failure"),
		logging.String("resolved_status", string(status)),
		logging.String("error_message", message),
	)

	m.setLastError(jobErr)
	job.Status = status
	job.ErrorMessage = message
	m.setLastJob(job)

	fileName := ""
	if file != nil {
		fileName = filepath.Base(file.Path)
	}
	if status == catalog.JobReview {
		m.notifyReviewNeeded(ctx, logger, fileName, job.Parser, message)
	} else {
		m.notifyStepFailed(ctx, logger, fileName, job.Parser, message)
	}
}

// failureMessage trims the classification marker off the error text so the
// stored message starts at the component detail.
func failureMessage(parserName string, jobErr error) string {
	if jobErr == nil {
		if parserName != "" {
			return parserName + " failed without error detail"
		}
		return "job failed without error detail"
	}
	message := strings.TrimSpace(jobErr.Error())
	for _, marker := range []error{
		services.ErrExternalTool,
		services.ErrValidation,
		services.ErrConfiguration,
		services.ErrNotFound,
		services.ErrTimeout,
		services.ErrTransient,
		services.ErrCircularDependency,
	} {
		message = strings.TrimPrefix(message, marker.Error()+": ")
	}
	if message == "" {
		if parserName != "" {
			return parserName + " failed"
		}
		return "job failed"
	}
	return message
}
