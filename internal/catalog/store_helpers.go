package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const fileColumns = "id, path, kind, size_bytes, checksum, created_at, updated_at"

const configColumns = "id, name, implementation, extensions_json, output_ext, depends_on_json, required_tags_json, allow_derivatives, allow_user_selection, enabled, settings_json, created_at, updated_at"

const parseColumns = "id, file_id, parser, status, output_path, error_message, created_at, updated_at"

const predictionColumns = "id, file_id, chain_json, costs_json, dependencies_json, valid, created_at, updated_at"

const jobColumns = "id, file_id, parser, status, error_message, correlation_id, created_at, updated_at, started_at, finished_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanFile(scanner rowScanner) (*FileRecord, error) {
	var (
		id         int64
		path       string
		kind       string
		sizeBytes  sql.NullInt64
		checksum   sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &path, &kind, &sizeBytes, &checksum, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	record := &FileRecord{
		ID:        id,
		Path:      path,
		Kind:      FileKind(kind),
		SizeBytes: sizeBytes.Int64,
		Checksum:  checksum.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func scanConfig(scanner rowScanner) (*ParserConfig, error) {
	var (
		id                 int64
		name               string
		implementation     string
		extensionsJSON     sql.NullString
		outputExt          sql.NullString
		dependsOnJSON      sql.NullString
		requiredTagsJSON   sql.NullString
		allowDerivatives   sql.NullInt64
		allowUserSelection sql.NullInt64
		enabled            sql.NullInt64
		settingsJSON       sql.NullString
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&name,
		&implementation,
		&extensionsJSON,
		&outputExt,
		&dependsOnJSON,
		&requiredTagsJSON,
		&allowDerivatives,
		&allowUserSelection,
		&enabled,
		&settingsJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	cfg := &ParserConfig{
		ID:                 id,
		Name:               name,
		Implementation:     implementation,
		OutputExt:          outputExt.String,
		AllowDerivatives:   allowDerivatives.Int64 != 0,
		AllowUserSelection: allowUserSelection.Int64 != 0,
		Enabled:            enabled.Int64 != 0,
		Settings:           settingsJSON.String,
	}
	var err error
	if cfg.Extensions, err = decodeStringList(extensionsJSON.String); err != nil {
		return nil, fmt.Errorf("decode extensions for %s: %w", name, err)
	}
	if cfg.DependsOn, err = decodeStringList(dependsOnJSON.String); err != nil {
		return nil, fmt.Errorf("decode depends_on for %s: %w", name, err)
	}
	if cfg.RequiredTags, err = decodeStringList(requiredTagsJSON.String); err != nil {
		return nil, fmt.Errorf("decode required_tags for %s: %w", name, err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		cfg.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		cfg.UpdatedAt = updated
	}
	return cfg, nil
}

func scanParse(scanner rowScanner) (*ParseRecord, error) {
	var (
		id         int64
		fileID     int64
		parser     string
		status     string
		outputPath sql.NullString
		errMessage sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &fileID, &parser, &status, &outputPath, &errMessage, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	record := &ParseRecord{
		ID:           id,
		FileID:       fileID,
		Parser:       parser,
		Status:       ParseStatus(status),
		OutputPath:   outputPath.String,
		ErrorMessage: errMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func scanPrediction(scanner rowScanner) (*PredictedJob, error) {
	var (
		id         int64
		fileID     int64
		chainJSON  sql.NullString
		costsJSON  sql.NullString
		depsJSON   sql.NullString
		valid      sql.NullInt64
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &fileID, &chainJSON, &costsJSON, &depsJSON, &valid, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	prediction := &PredictedJob{
		ID:     id,
		FileID: fileID,
		Valid:  valid.Int64 != 0,
	}
	if chainJSON.String != "" {
		if err := json.Unmarshal([]byte(chainJSON.String), &prediction.Chain); err != nil {
			return nil, fmt.Errorf("decode chain for file %d: %w", fileID, err)
		}
	}
	if costsJSON.String != "" && costsJSON.String != "{}" {
		if err := json.Unmarshal([]byte(costsJSON.String), &prediction.Costs); err != nil {
			return nil, fmt.Errorf("decode costs for file %d: %w", fileID, err)
		}
	}
	var err error
	if prediction.Dependencies, err = decodeStringList(depsJSON.String); err != nil {
		return nil, fmt.Errorf("decode dependencies for file %d: %w", fileID, err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		prediction.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		prediction.UpdatedAt = updated
	}
	return prediction, nil
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		id          int64
		fileID      int64
		parser      string
		status      string
		errMessage  sql.NullString
		correlation sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&fileID,
		&parser,
		&status,
		&errMessage,
		&correlation,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	job := &Job{
		ID:            id,
		FileID:        fileID,
		Parser:        parser,
		Status:        JobStatus(status),
		ErrorMessage:  errMessage.String,
		CorrelationID: correlation.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}

func encodeStringList(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStringList(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
