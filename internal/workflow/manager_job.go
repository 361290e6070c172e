package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/fileutil"
	"hopper/internal/logging"
	"hopper/internal/parser"
	"hopper/internal/services"
)

// processJob takes one pending job from claim to a terminal state. Readiness
// is re-checked here rather than at enqueue time: dependencies or inputs that
// are not ready yet push the job back with a deferral, everything else either
// completes, fails, or parks for review.
func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *catalog.Job) error {
	jobCtx := services.WithFileID(ctx, job.FileID)
	jobCtx = services.WithParser(jobCtx, job.Parser)
	if job.CorrelationID != "" {
		jobCtx = services.WithRequestID(jobCtx, job.CorrelationID)
	}
	jobLogger := logging.WithContext(jobCtx, logger).With(logging.Int64(logging.FieldJobID, job.ID))

	file, err := m.store.GetFileByID(jobCtx, job.FileID)
	if err != nil {
		m.backoffAfterError(ctx, jobLogger, "failed to load job file", err)
		return nil
	}
	if file == nil {
		m.handleJobFailure(jobCtx, jobLogger, job, nil,
			services.Wrap(services.ErrNotFound, "workflow", "resolve file",
				fmt.Sprintf("file %d is gone from the catalog", job.FileID), nil))
		return nil
	}

	cfg, err := m.chains.GetParserConfig(jobCtx, job.Parser)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			m.handleJobFailure(jobCtx, jobLogger, job, file, err)
			return nil
		}
		m.backoffAfterError(ctx, jobLogger, "failed to load parser config", err)
		return nil
	}
	if !cfg.Enabled {
		m.handleJobFailure(jobCtx, jobLogger, job, file,
			services.Wrap(services.ErrConfiguration, "workflow", "resolve config",
				fmt.Sprintf("parser %q is disabled", cfg.Name), nil))
		return nil
	}
	impl, ok := m.registry.Get(cfg.Implementation)
	if !ok {
		m.handleJobFailure(jobCtx, jobLogger, job, file,
			services.Wrap(services.ErrConfiguration, "workflow", "resolve implementation",
				fmt.Sprintf("implementation %q is not registered", cfg.Implementation), nil))
		return nil
	}

	parses, err := m.store.GetFileParses(jobCtx, file.ID)
	if err != nil {
		m.backoffAfterError(ctx, jobLogger, "failed to load parse history", err)
		return nil
	}

	// A done parse with a live output means this job already ran, most likely
	// before a crash cut the bookkeeping short. Close it out instead of
	// running the implementation again.
	if rec := doneParse(parses, cfg.Name); rec != nil {
		jobLogger.Info("output already recorded, closing job",
			logging.String(logging.FieldEventType, "job_replayed"),
			logging.String("output_path", rec.OutputPath),
		)
		if err := m.store.FinishJob(jobCtx, job.ID, catalog.JobCompleted, ""); err != nil {
			jobLogger.Error("failed to close replayed job", logging.Error(err))
			m.setLastError(err)
			return nil
		}
		m.finishArtifact(jobCtx, jobLogger, file, rec.OutputPath)
		return nil
	}

	completed := completedParsers(parses)
	if missing := missingDependencies(cfg, completed); len(missing) > 0 {
		jobLogger.Debug("job deferred, dependencies incomplete",
			logging.String("missing", strings.Join(missing, ",")),
		)
		m.deferJob(jobCtx, jobLogger, job)
		m.waitForJobOrShutdown(ctx)
		return nil
	}

	inputPath, ok := m.resolveInput(jobCtx, file, cfg, parses)
	if !ok {
		jobLogger.Debug("job deferred, input not yet produced")
		m.deferJob(jobCtx, jobLogger, job)
		m.waitForJobOrShutdown(ctx)
		return nil
	}
	if inputPath == file.Path && !fileutil.Exists(inputPath) {
		m.handleJobFailure(jobCtx, jobLogger, job, file,
			services.Wrap(services.ErrNotFound, "workflow", "stat input",
				fmt.Sprintf("%s is gone from disk", inputPath), nil))
		return nil
	}

	outputPath := inputPath + cfg.OutputExt
	if fileutil.Exists(outputPath) {
		// Someone already produced this artifact. Record it instead of
		// clobbering it with a second run.
		if _, err := m.store.UpsertParse(jobCtx, file.ID, cfg.Name, catalog.ParseDone, outputPath, ""); err != nil {
			m.backoffAfterError(ctx, jobLogger, "failed to record existing output", err)
			return nil
		}
		if err := m.store.FinishJob(jobCtx, job.ID, catalog.JobCompleted, ""); err != nil {
			jobLogger.Error("failed to close job for existing output", logging.Error(err))
			m.setLastError(err)
			return nil
		}
		jobLogger.Info("output already on disk, skipping run",
			logging.String(logging.FieldEventType, "job_skipped"),
			logging.String("output_path", outputPath),
		)
		m.finishArtifact(jobCtx, jobLogger, file, outputPath)
		return nil
	}

	claimed, err := m.store.MarkJobRunning(jobCtx, job.ID)
	if err != nil {
		m.backoffAfterError(ctx, jobLogger, "failed to claim job", err)
		return nil
	}
	if !claimed {
		return nil
	}
	return m.executeJob(jobCtx, jobLogger, job, file, cfg, impl, inputPath, outputPath)
}

// executeJob runs the implementation for a claimed job and persists the
// outcome. The parse row moves to processing first so an operator inspecting
// the file mid-run sees what is happening.
func (m *Manager) executeJob(ctx context.Context, jobLogger *slog.Logger, job *catalog.Job, file *catalog.FileRecord, cfg *catalog.ParserConfig, impl parser.Implementation, inputPath, outputPath string) error {
	start := time.Now()
	jobLogger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("input_path", inputPath),
		logging.String("output_path", outputPath),
	)

	if _, err := m.store.UpsertParse(ctx, file.ID, cfg.Name, catalog.ParseProcessing, "", ""); err != nil {
		// The job stays running and returns to pending on the next daemon
		// start, where the replay check picks it back up.
		jobLogger.Error("failed to record parse start", logging.Error(err))
		m.setLastError(err)
		return err
	}

	runCtx := ctx
	if m.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.jobTimeout)
		defer cancel()
	}
	produced, runErr := impl.Run(runCtx, parser.Request{InputPath: inputPath, OutputPath: outputPath})
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
			jobLogger.Debug("job interrupted by shutdown")
			return runErr
		}
		if errors.Is(runErr, context.DeadlineExceeded) {
			runErr = services.Wrap(services.ErrTimeout, cfg.Name, "run",
				fmt.Sprintf("no result after %s", m.jobTimeout), runErr)
		}
		m.handleJobFailure(ctx, jobLogger, job, file, runErr)
		return runErr
	}
	if strings.TrimSpace(produced) == "" {
		produced = outputPath
	}
	if !fileutil.Exists(produced) {
		err := services.Wrap(services.ErrExternalTool, cfg.Name, "verify output",
			fmt.Sprintf("run reported success but %s does not exist", produced), nil)
		m.handleJobFailure(ctx, jobLogger, job, file, err)
		return err
	}

	if _, err := m.store.UpsertParse(ctx, file.ID, cfg.Name, catalog.ParseDone, produced, ""); err != nil {
		m.handleJobFailure(ctx, jobLogger, job, file, fmt.Errorf("record parse result: %w", err))
		return err
	}
	if err := m.store.FinishJob(ctx, job.ID, catalog.JobCompleted, ""); err != nil {
		// The parse is durable, so the replay check closes the job later.
		jobLogger.Error("failed to mark job completed", logging.Error(err))
		m.setLastError(err)
		return err
	}

	jobLogger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("output_path", produced),
		logging.Duration("job_duration", time.Since(start)),
	)
	job.Status = catalog.JobCompleted
	m.setLastJob(job)
	m.finishArtifact(ctx, jobLogger, file, produced)
	return nil
}

// finishArtifact records the downstream consequences of a produced output:
// the derivative file record, refreshed predictions on both ends of the hop,
// auto-mode dispatch, and the chain-completion check.
func (m *Manager) finishArtifact(ctx context.Context, logger *slog.Logger, file *catalog.FileRecord, outputPath string) {
	derivative := m.registerDerivative(ctx, logger, outputPath)

	var sourceOutlook, derivedOutlook *catalog.PredictedJob
	if prediction, err := m.chains.RecomputeOne(ctx, file.ID); err != nil {
		logger.Warn("failed to refresh source prediction", logging.Error(err))
	} else {
		sourceOutlook = prediction
	}
	if derivative != nil {
		if prediction, err := m.chains.RecomputeOne(ctx, derivative.ID); err != nil {
			logger.Warn("failed to refresh derivative prediction", logging.Error(err))
		} else {
			derivedOutlook = prediction
		}
	}

	if m.cfg.Workflow.AutoApprove {
		m.enqueueReadySteps(ctx, file)
		if derivative != nil {
			m.enqueueReadySteps(ctx, derivative)
		}
	}

	if !predictionActive(sourceOutlook) && !predictionActive(derivedOutlook) {
		m.notifyChainComplete(ctx, logger, outputPath)
	}
}

// registerDerivative catalogs a produced output as a derivative file. Failing
// to register is logged rather than fatal; the next ingest scan repairs it.
func (m *Manager) registerDerivative(ctx context.Context, logger *slog.Logger, outputPath string) *catalog.FileRecord {
	size, err := fileutil.Size(outputPath)
	if err != nil {
		logger.Warn("derivative missing at registration", logging.Error(err), logging.String(logging.FieldPath, outputPath))
		return nil
	}
	checksum, err := fileutil.HashFile(outputPath)
	if err != nil {
		logger.Warn("derivative checksum failed", logging.Error(err), logging.String(logging.FieldPath, outputPath))
		checksum = ""
	}
	record, err := m.store.UpsertFile(ctx, outputPath, catalog.FileDerivative, size, checksum)
	if err != nil {
		logger.Warn("failed to register derivative", logging.Error(err), logging.String(logging.FieldPath, outputPath))
		return nil
	}
	logger.Info("derivative registered",
		logging.String(logging.FieldEventType, "derivative_registered"),
		logging.Int64("derivative_id", record.ID),
		logging.String(logging.FieldPath, outputPath),
	)
	return record
}

func (m *Manager) deferJob(ctx context.Context, logger *slog.Logger, job *catalog.Job) {
	if err := m.store.DeferJob(ctx, job.ID); err != nil {
		logger.Warn("failed to defer job", logging.Error(err))
	}
}

// resolveInput picks the path the implementation should read: the job's file
// when the config accepts its extension, otherwise the output of an earlier
// step recorded against the same file. The single hop through parse history
// is what lets a whole approved chain hang off the original record.
func (m *Manager) resolveInput(ctx context.Context, file *catalog.FileRecord, cfg *catalog.ParserConfig, parses []*catalog.ParseRecord) (string, bool) {
	var known []string
	if configs, err := m.chains.ListParserConfigs(ctx); err == nil {
		known = chain.KnownExtensions(configs)
	}
	if acceptsPath(cfg, file.Path, known) {
		return file.Path, true
	}
	for _, rec := range parses {
		if rec.Status != catalog.ParseDone || rec.OutputPath == "" {
			continue
		}
		if !fileutil.Exists(rec.OutputPath) {
			continue
		}
		if acceptsPath(cfg, rec.OutputPath, known) {
			return rec.OutputPath, true
		}
	}
	return "", false
}

func acceptsPath(cfg *catalog.ParserConfig, path string, known []string) bool {
	resolved := chain.ResolveExtension(path, known)
	for _, ext := range cfg.Extensions {
		if strings.EqualFold(ext, resolved) {
			return true
		}
	}
	return false
}

// completedParsers names the parses that are done with their outputs still on
// disk, matching the completion rule chain prediction uses.
func completedParsers(parses []*catalog.ParseRecord) map[string]struct{} {
	completed := make(map[string]struct{}, len(parses))
	for _, rec := range parses {
		if rec.Status != catalog.ParseDone {
			continue
		}
		if rec.OutputPath == "" || !fileutil.Exists(rec.OutputPath) {
			continue
		}
		completed[rec.Parser] = struct{}{}
	}
	return completed
}

func doneParse(parses []*catalog.ParseRecord, parserName string) *catalog.ParseRecord {
	for _, rec := range parses {
		if rec.Parser != parserName || rec.Status != catalog.ParseDone {
			continue
		}
		if rec.OutputPath == "" || !fileutil.Exists(rec.OutputPath) {
			continue
		}
		return rec
	}
	return nil
}

func missingDependencies(cfg *catalog.ParserConfig, completed map[string]struct{}) []string {
	var missing []string
	for _, dep := range cfg.DependsOn {
		if _, ok := completed[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	return missing
}

func predictionActive(prediction *catalog.PredictedJob) bool {
	return prediction != nil && prediction.Valid && len(prediction.Chain) > 0
}
