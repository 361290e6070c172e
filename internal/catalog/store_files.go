package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertFile registers a file by path, updating size, checksum, and kind when
// the path is already known. The watcher registers originals; the workflow
// registers parser outputs as derivatives.
func (s *Store) UpsertFile(ctx context.Context, path string, kind FileKind, sizeBytes int64, checksum string) (*FileRecord, error) {
	if path == "" {
		return nil, errors.New("path is empty")
	}
	if kind == "" {
		kind = FileOriginal
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO files (path, kind, size_bytes, checksum, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
             kind = excluded.kind,
             size_bytes = excluded.size_bytes,
             checksum = excluded.checksum,
             updated_at = excluded.updated_at`,
		path,
		string(kind),
		sizeBytes,
		nullableString(checksum),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("upsert file: %w", err)
	}

	return s.GetFileByPath(ctx, path)
}

// GetFileByID fetches a file record by identifier.
func (s *Store) GetFileByID(ctx context.Context, id int64) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	record, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return record, nil
}

// GetFileByPath fetches a file record by its registered path.
func (s *Store) GetFileByPath(ctx context.Context, path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE path = ?`, path)
	record, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file by path: %w", err)
	}
	return record, nil
}

// ListFiles returns file records filtered by kind (or all files when no kind
// is provided), ordered by registration time.
func (s *Store) ListFiles(ctx context.Context, kinds ...FileKind) ([]*FileRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + fileColumns + ` FROM files`
	orderClause := ` ORDER BY created_at, id`

	if len(kinds) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(kinds))
		args := make([]any, len(kinds))
		for i, kind := range kinds {
			args[i] = string(kind)
		}
		query := baseQuery + ` WHERE kind IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		record, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteFile removes a file record; parses, predictions, and jobs cascade.
func (s *Store) DeleteFile(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete file: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetFileTags replaces the tag set for a file.
func (s *Store) SetFileTags(ctx context.Context, fileID int64, tags []string) error {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tags transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM file_tags WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO file_tags (file_id, tag) VALUES (?, ?)`, fileID, tag); err != nil {
			return fmt.Errorf("insert tag %s: %w", tag, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tags: %w", err)
	}
	return nil
}

// GetFileTags returns a file's tags in lexical order.
func (s *Store) GetFileTags(ctx context.Context, fileID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM file_tags WHERE file_id = ? ORDER BY tag`, fileID)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
