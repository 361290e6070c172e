package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// UpsertPredictedJob stores the predicted processing chain for a file,
// replacing any previous prediction and marking it valid. Costs map step
// names to estimated dollars; both are computed by the caller so the stored
// values always agree with the stored chain.
func (s *Store) UpsertPredictedJob(ctx context.Context, fileID int64, chain []ProcessingStep, costs map[string]float64, dependencies []string) (*PredictedJob, error) {
	if chain == nil {
		chain = []ProcessingStep{}
	}
	if costs == nil {
		costs = map[string]float64{}
	}
	chainJSON, err := json.Marshal(chain)
	if err != nil {
		return nil, fmt.Errorf("encode chain: %w", err)
	}
	costsJSON, err := json.Marshal(costs)
	if err != nil {
		return nil, fmt.Errorf("encode costs: %w", err)
	}
	dependenciesJSON, err := encodeStringList(dependencies)
	if err != nil {
		return nil, fmt.Errorf("encode dependencies: %w", err)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO predicted_jobs (file_id, chain_json, costs_json, dependencies_json, valid, created_at, updated_at)
         VALUES (?, ?, ?, ?, 1, ?, ?)
         ON CONFLICT(file_id) DO UPDATE SET
             chain_json = excluded.chain_json,
             costs_json = excluded.costs_json,
             dependencies_json = excluded.dependencies_json,
             valid = 1,
             updated_at = excluded.updated_at`,
		fileID,
		string(chainJSON),
		string(costsJSON),
		dependenciesJSON,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("upsert prediction: %w", err)
	}

	return s.GetPredictedJob(ctx, fileID)
}

// GetPredictedJob fetches the stored prediction for a file, valid or not.
func (s *Store) GetPredictedJob(ctx context.Context, fileID int64) (*PredictedJob, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+predictionColumns+` FROM predicted_jobs WHERE file_id = ?`,
		fileID,
	)
	prediction, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return prediction, nil
}

// ListPredictedJobs returns every stored prediction ordered by file,
// including invalidated rows so callers can distinguish "nothing predicted"
// from "not yet computed".
func (s *Store) ListPredictedJobs(ctx context.Context) ([]*PredictedJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+predictionColumns+` FROM predicted_jobs ORDER BY file_id`)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*PredictedJob
	for rows.Next() {
		prediction, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, prediction)
	}
	return predictions, rows.Err()
}

// InvalidatePredictedJob marks a file's prediction invalid while keeping the
// row, so consumers see "nothing left to do" rather than a stale chain.
func (s *Store) InvalidatePredictedJob(ctx context.Context, fileID int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE predicted_jobs SET valid = 0, updated_at = ? WHERE file_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		fileID,
	)
	if err != nil {
		return false, fmt.Errorf("invalidate prediction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
