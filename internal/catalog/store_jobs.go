package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueueJob inserts a pending job for a (file, parser) pair. Enqueueing is
// idempotent: an existing pending, running, or completed job is left alone,
// while failed and review jobs are reset to pending with a fresh correlation
// id so operators can retry after fixing the cause.
func (s *Store) EnqueueJob(ctx context.Context, fileID int64, parser string) (*Job, error) {
	if parser == "" {
		return nil, errors.New("parser name is empty")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO jobs (file_id, parser, status, correlation_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(file_id, parser) DO UPDATE SET
             status = excluded.status,
             error_message = NULL,
             correlation_id = excluded.correlation_id,
             updated_at = excluded.updated_at,
             started_at = NULL,
             finished_at = NULL
         WHERE jobs.status IN (?, ?)`,
		fileID,
		parser,
		JobPending,
		uuid.NewString(),
		timestamp,
		timestamp,
		JobFailed,
		JobReview,
	); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	return s.GetJob(ctx, fileID, parser)
}

// GetJob fetches the job for a (file, parser) pair.
func (s *Store) GetJob(ctx context.Context, fileID int64, parser string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE file_id = ? AND parser = ?`,
		fileID,
		parser,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetJobByID fetches a job by identifier.
func (s *Store) GetJobByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListFileJobs returns every job recorded for a file ordered by parser name.
func (s *Store) ListFileJobs(ctx context.Context, fileID int64) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE file_id = ? ORDER BY parser`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("query file jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextPendingJob returns the oldest pending job whose file has no job already
// running, so at most one job per file is ever in flight. Deferred jobs sort
// behind fresher ones because deferral bumps updated_at.
func (s *Store) NextPendingJob(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status = ?
           AND file_id NOT IN (SELECT file_id FROM jobs WHERE status = ?)
         ORDER BY updated_at, id LIMIT 1`,
		JobPending,
		JobRunning,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return job, nil
}

// MarkJobRunning claims a pending job. The status guard makes the claim safe
// to race: only one caller observes a true result.
func (s *Store) MarkJobRunning(ctx context.Context, id int64) (bool, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobRunning,
		timestamp,
		timestamp,
		id,
		JobPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark job running: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// FinishJob records a terminal outcome for a job.
func (s *Store) FinishJob(ctx context.Context, id int64, status JobStatus, errorMessage string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	if status == JobCompleted {
		errorMessage = ""
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(errorMessage),
		timestamp,
		timestamp,
		id,
	); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// DeferJob pushes a pending job behind its peers when its dependencies are not
// ready yet, by bumping updated_at.
func (s *Store) DeferJob(ctx context.Context, id int64) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET updated_at = ? WHERE id = ? AND status = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		JobPending,
	); err != nil {
		return fmt.Errorf("defer job: %w", err)
	}
	return nil
}

// ResetStuckJobs returns jobs left running by a previous daemon back to
// pending so they are claimed again after a restart.
func (s *Store) ResetStuckJobs(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, started_at = NULL, updated_at = ? WHERE status = ?`,
		JobPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		JobRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// JobStats returns a count per job status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[JobStatus(status)] = count
	}
	return stats, rows.Err()
}
