package chain

import (
	"context"
	"fmt"

	"hopper/internal/catalog"
	"hopper/internal/fileutil"
	"hopper/internal/services"
)

// completedSteps derives the finished step names for a file from its parse
// records. A done record only counts while its output still exists on disk;
// deleting an output makes the step reappear in the next prediction.
func completedSteps(parses []*catalog.ParseRecord) []string {
	var out []string
	for _, rec := range parses {
		if rec.Status != catalog.ParseDone {
			continue
		}
		if rec.OutputPath == "" || !fileutil.Exists(rec.OutputPath) {
			continue
		}
		out = append(out, rec.Parser)
	}
	return out
}

// RecomputeOne refreshes the predicted job for a single file, typically
// right after one of its steps finishes.
func (m *Manager) RecomputeOne(ctx context.Context, fileID int64) (*catalog.PredictedJob, error) {
	file, err := m.store.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, services.Wrap(services.ErrNotFound, "chain", "recompute prediction",
			fmt.Sprintf("file %d", fileID), nil)
	}
	return m.recomputeFile(ctx, file)
}

// RecomputeAll refreshes predicted jobs for every known file and returns the
// files with work remaining. The pass checks ctx between files so a shutdown
// leaves fully consistent per-file state; a file whose prediction fails is
// skipped with a diagnostic so it cannot stall the rest.
func (m *Manager) RecomputeAll(ctx context.Context) ([]*catalog.PredictedJob, error) {
	files, err := m.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	jobs := make([]*catalog.PredictedJob, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return jobs, err
		}
		job, err := m.recomputeFile(ctx, file)
		if err != nil {
			m.emit(Diagnostic{
				Kind:   DiagnosticPredictionSkipped,
				Path:   file.Path,
				Detail: err.Error(),
			})
			continue
		}
		if job != nil && job.Valid {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// GetAllPredictedJobs recomputes and returns the current predictions. The
// recompute keeps the answer honest when configs changed or outputs vanished
// since the last pass.
func (m *Manager) GetAllPredictedJobs(ctx context.Context) ([]*catalog.PredictedJob, error) {
	return m.RecomputeAll(ctx)
}

// recomputeFile runs prediction for one file and persists the outcome: a
// non-empty chain upserts the predicted job, an empty chain invalidates any
// existing one rather than leaving a stale forecast visible.
func (m *Manager) recomputeFile(ctx context.Context, file *catalog.FileRecord) (*catalog.PredictedJob, error) {
	tags, err := m.store.GetFileTags(ctx, file.ID)
	if err != nil {
		m.emit(Diagnostic{
			Kind:   DiagnosticTagLookupFailed,
			Path:   file.Path,
			Detail: err.Error(),
		})
		tags = nil
	}
	parses, err := m.store.GetFileParses(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	completed := completedSteps(parses)
	chain, err := m.PredictProcessingChainFrom(ctx, file.Path, tags, completed, file.IsDerivative())
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		if _, err := m.store.InvalidatePredictedJob(ctx, file.ID); err != nil {
			return nil, err
		}
		return m.store.GetPredictedJob(ctx, file.ID)
	}

	costs := make(map[string]float64, len(chain))
	var deps []string
	seen := make(map[string]struct{})
	for _, step := range chain {
		costs[step.Parser] = step.EstimatedCost
		for _, dep := range step.DependsOn {
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			deps = append(deps, dep)
		}
	}
	return m.store.UpsertPredictedJob(ctx, file.ID, chain, costs, deps)
}
