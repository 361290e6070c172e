package workflow

import (
	"context"
	"fmt"
	"strings"

	"hopper/internal/catalog"
	"hopper/internal/logging"
)

// IngestFile registers a discovered file and refreshes its prediction. In
// auto-approve mode every step that is ready right away is queued too; in
// manual mode processing stops at the recorded prediction so an operator can
// approve it. The watcher hands files here once they are stable on disk.
func (m *Manager) IngestFile(ctx context.Context, path string, sizeBytes int64, checksum string) (*catalog.FileRecord, error) {
	kind := m.classifyPath(ctx, path)
	file, err := m.store.UpsertFile(ctx, path, kind, sizeBytes, checksum)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}

	logger := logging.NewComponentLogger(m.logger, "workflow").With(
		logging.Int64(logging.FieldFileID, file.ID),
		logging.String(logging.FieldPath, path),
	)

	steps := 0
	if prediction, err := m.chains.RecomputeOne(ctx, file.ID); err != nil {
		logger.Warn("prediction failed during ingest", logging.Error(err))
	} else if predictionActive(prediction) {
		steps = len(prediction.Chain)
	}
	logger.Info("file ingested",
		logging.String(logging.FieldEventType, "file_ingested"),
		logging.String("kind", string(kind)),
		logging.Int("predicted_steps", steps),
	)

	if m.cfg.Workflow.AutoApprove {
		m.enqueueReadySteps(ctx, file)
	}
	return file, nil
}

// classifyPath decides whether a path is an original drop or the output of a
// configured step, by suffix against the configured output extensions. When
// configs cannot be read the file counts as original; prediction still treats
// it correctly once the catalog recovers.
func (m *Manager) classifyPath(ctx context.Context, path string) catalog.FileKind {
	configs, err := m.chains.ListParserConfigs(ctx)
	if err != nil {
		return catalog.FileOriginal
	}
	lower := strings.ToLower(path)
	for _, cfg := range configs {
		if cfg.OutputExt != "" && strings.HasSuffix(lower, cfg.OutputExt) {
			return catalog.FileDerivative
		}
	}
	return catalog.FileOriginal
}

// enqueueReadySteps queues every step that can run against file right now.
// Steps that already completed or already have a job row are left alone, so
// auto mode never resurrects failed work behind the operator's back; manual
// re-approval is the explicit retry path.
func (m *Manager) enqueueReadySteps(ctx context.Context, file *catalog.FileRecord) {
	logger := logging.NewComponentLogger(m.logger, "workflow").With(
		logging.Int64(logging.FieldFileID, file.ID),
	)

	tags, err := m.store.GetFileTags(ctx, file.ID)
	if err != nil {
		logger.Warn("tag lookup failed, treating file as untagged", logging.Error(err))
		tags = nil
	}
	parses, err := m.store.GetFileParses(ctx, file.ID)
	if err != nil {
		logger.Warn("parse lookup failed, skipping dispatch", logging.Error(err))
		return
	}
	completed := completedParsers(parses)
	completedNames := make([]string, 0, len(completed))
	for name := range completed {
		completedNames = append(completedNames, name)
	}

	ready, err := m.chains.GetReadyConfigs(ctx, file.Path, tags, completedNames, file.IsDerivative())
	if err != nil {
		logger.Warn("ready step lookup failed, skipping dispatch", logging.Error(err))
		return
	}
	if len(ready) == 0 {
		return
	}

	jobs, err := m.store.ListFileJobs(ctx, file.ID)
	if err != nil {
		logger.Warn("job lookup failed, skipping dispatch", logging.Error(err))
		return
	}
	existing := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		existing[job.Parser] = struct{}{}
	}

	for _, cfg := range ready {
		if _, done := completed[cfg.Name]; done {
			continue
		}
		if _, queued := existing[cfg.Name]; queued {
			continue
		}
		job, err := m.store.EnqueueJob(ctx, file.ID, cfg.Name)
		if err != nil {
			logger.Warn("failed to enqueue ready step",
				logging.Error(err),
				logging.String(logging.FieldParser, cfg.Name),
			)
			continue
		}
		logger.Info("job enqueued",
			logging.String(logging.FieldEventType, "job_enqueued"),
			logging.String(logging.FieldParser, cfg.Name),
			logging.String(logging.FieldCorrelationID, job.CorrelationID),
		)
	}
}
