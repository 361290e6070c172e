package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertParse records the outcome of running a parser against a file. One row
// exists per (file, parser) pair; repeat runs overwrite the previous outcome.
// Resetting a parse to pending clears its output path and error message so a
// re-run starts from a clean slate.
func (s *Store) UpsertParse(ctx context.Context, fileID int64, parser string, status ParseStatus, outputPath, errorMessage string) (*ParseRecord, error) {
	if parser == "" {
		return nil, errors.New("parser name is empty")
	}
	if status == ParsePending {
		outputPath = ""
		errorMessage = ""
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO parses (file_id, parser, status, output_path, error_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(file_id, parser) DO UPDATE SET
             status = excluded.status,
             output_path = excluded.output_path,
             error_message = excluded.error_message,
             updated_at = excluded.updated_at`,
		fileID,
		parser,
		string(status),
		nullableString(outputPath),
		nullableString(errorMessage),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("upsert parse: %w", err)
	}

	return s.GetParse(ctx, fileID, parser)
}

// GetParse fetches the parse outcome for a (file, parser) pair.
func (s *Store) GetParse(ctx context.Context, fileID int64, parser string) (*ParseRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+parseColumns+` FROM parses WHERE file_id = ? AND parser = ?`,
		fileID,
		parser,
	)
	record, err := scanParse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get parse: %w", err)
	}
	return record, nil
}

// GetFileParses returns every parse recorded for a file ordered by parser name.
func (s *Store) GetFileParses(ctx context.Context, fileID int64) ([]*ParseRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+parseColumns+` FROM parses WHERE file_id = ? ORDER BY parser`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("query parses: %w", err)
	}
	defer rows.Close()

	var records []*ParseRecord
	for rows.Next() {
		record, err := scanParse(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
