package api

import (
	"context"
	"fmt"

	"hopper/internal/catalog"
	"hopper/internal/services"
)

// Approver captures the prediction and queue operations behind approval.
type Approver interface {
	GetPredictedJob(ctx context.Context, fileID int64) (*catalog.PredictedJob, error)
	GetParserConfig(ctx context.Context, name string) (*catalog.ParserConfig, error)
	EnqueueJob(ctx context.Context, fileID int64, parser string) (*catalog.Job, error)
}

// ApproveResult reports the jobs enqueued by a prediction approval.
type ApproveResult struct {
	FileID   int64 `json:"fileId"`
	Enqueued []Job `json:"enqueued"`
}

// ApprovePrediction enqueues jobs for the selected steps of a file's
// prediction. An empty selection approves every predicted step. Explicitly
// selected steps must belong to the predicted chain and allow user selection;
// whole-chain approval carries selection-locked steps along since they run as
// dependencies anyway. Steps whose dependencies have not completed yet are
// still enqueued; the worker defers them until they become ready.
func ApprovePrediction(ctx context.Context, service Approver, fileID int64, steps []string) (ApproveResult, error) {
	predicted, err := service.GetPredictedJob(ctx, fileID)
	if err != nil {
		return ApproveResult{}, err
	}
	if predicted == nil || !predicted.Valid || len(predicted.Chain) == 0 {
		return ApproveResult{}, services.Wrap(services.ErrNotFound, "approval", "lookup",
			fmt.Sprintf("no valid prediction for file %d", fileID), nil)
	}

	inChain := make(map[string]struct{}, len(predicted.Chain))
	ordered := make([]string, 0, len(predicted.Chain))
	for _, step := range predicted.Chain {
		if _, seen := inChain[step.Parser]; seen {
			continue
		}
		inChain[step.Parser] = struct{}{}
		ordered = append(ordered, step.Parser)
	}

	selected := ordered
	if len(steps) > 0 {
		selected = make([]string, 0, len(steps))
		seen := make(map[string]struct{}, len(steps))
		for _, name := range steps {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if _, ok := inChain[name]; !ok {
				return ApproveResult{}, services.Wrap(services.ErrValidation, "approval", "select",
					fmt.Sprintf("parser %q is not part of the predicted chain", name), nil)
			}
			cfg, err := service.GetParserConfig(ctx, name)
			if err != nil {
				return ApproveResult{}, err
			}
			if cfg == nil {
				return ApproveResult{}, services.Wrap(services.ErrNotFound, "approval", "select",
					fmt.Sprintf("parser config %q no longer exists", name), nil)
			}
			if !cfg.AllowUserSelection {
				return ApproveResult{}, services.Wrap(services.ErrValidation, "approval", "select",
					fmt.Sprintf("parser %q does not allow user selection", name), nil)
			}
			selected = append(selected, name)
		}
	}

	result := ApproveResult{FileID: fileID, Enqueued: make([]Job, 0, len(selected))}
	for _, name := range selected {
		job, err := service.EnqueueJob(ctx, fileID, name)
		if err != nil {
			return ApproveResult{}, err
		}
		result.Enqueued = append(result.Enqueued, FromJob(job))
	}
	return result, nil
}
