package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertParserConfig inserts a parser configuration or updates the existing
// row with the same name. The returned record carries the stored identifier
// and timestamps.
func (s *Store) UpsertParserConfig(ctx context.Context, cfg *ParserConfig) (*ParserConfig, error) {
	if cfg == nil {
		return nil, errors.New("parser config is nil")
	}
	if cfg.Name == "" {
		return nil, errors.New("parser config name is empty")
	}
	if cfg.Implementation == "" {
		return nil, errors.New("parser config implementation is empty")
	}

	extensionsJSON, err := encodeStringList(cfg.Extensions)
	if err != nil {
		return nil, fmt.Errorf("encode extensions: %w", err)
	}
	dependsOnJSON, err := encodeStringList(cfg.DependsOn)
	if err != nil {
		return nil, fmt.Errorf("encode depends_on: %w", err)
	}
	requiredTagsJSON, err := encodeStringList(cfg.RequiredTags)
	if err != nil {
		return nil, fmt.Errorf("encode required_tags: %w", err)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO parser_configs (
            name, implementation, extensions_json, output_ext, depends_on_json,
            required_tags_json, allow_derivatives, allow_user_selection, enabled,
            settings_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            implementation = excluded.implementation,
            extensions_json = excluded.extensions_json,
            output_ext = excluded.output_ext,
            depends_on_json = excluded.depends_on_json,
            required_tags_json = excluded.required_tags_json,
            allow_derivatives = excluded.allow_derivatives,
            allow_user_selection = excluded.allow_user_selection,
            enabled = excluded.enabled,
            settings_json = excluded.settings_json,
            updated_at = excluded.updated_at`,
		cfg.Name,
		cfg.Implementation,
		extensionsJSON,
		cfg.OutputExt,
		dependsOnJSON,
		requiredTagsJSON,
		boolToInt(cfg.AllowDerivatives),
		boolToInt(cfg.AllowUserSelection),
		boolToInt(cfg.Enabled),
		nullableString(cfg.Settings),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("upsert parser config: %w", err)
	}

	return s.GetParserConfig(ctx, cfg.Name)
}

// GetParserConfig fetches a parser configuration by name.
func (s *Store) GetParserConfig(ctx context.Context, name string) (*ParserConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+configColumns+` FROM parser_configs WHERE name = ?`, name)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get parser config: %w", err)
	}
	return cfg, nil
}

// ListParserConfigs returns every parser configuration ordered by name.
func (s *Store) ListParserConfigs(ctx context.Context) ([]*ParserConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+configColumns+` FROM parser_configs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list parser configs: %w", err)
	}
	defer rows.Close()

	var configs []*ParserConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// DeleteParserConfig removes a parser configuration by name.
func (s *Store) DeleteParserConfig(ctx context.Context, name string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM parser_configs WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete parser config: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
