package chain

import (
	"context"

	"hopper/internal/pricing"
)

// Selection names the steps an operator picked from one file's prediction.
type Selection struct {
	FileID int64    `json:"file_id"`
	Steps  []string `json:"steps"`
}

// CalculateBatchCost sums the predicted cost of every selected step across
// files, for the approval flow's bottom line. A step missing from a file's
// prediction contributes zero, not an error: it may have completed between
// prediction and selection. Files with no valid prediction are skipped.
func (m *Manager) CalculateBatchCost(ctx context.Context, selections []Selection) (float64, error) {
	var total float64
	for _, sel := range selections {
		job, err := m.store.GetPredictedJob(ctx, sel.FileID)
		if err != nil {
			return 0, err
		}
		if job == nil || !job.Valid {
			continue
		}
		for _, step := range sel.Steps {
			if cost, ok := job.StepCost(step); ok {
				total += cost
			}
		}
	}
	return pricing.RoundCost(total), nil
}
