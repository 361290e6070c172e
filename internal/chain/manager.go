package chain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"hopper/internal/catalog"
	"hopper/internal/logging"
	"hopper/internal/parser"
	"hopper/internal/services"
)

// Manager owns parser configuration lifecycle and processing chain
// prediction. It is built once at the composition root with its
// collaborators and holds no global state, so tests can run isolated
// instances side by side.
type Manager struct {
	store    *catalog.Store
	registry *parser.Registry
	logger   *slog.Logger
	diag     DiagnosticSink
}

// Option adjusts manager construction.
type Option func(*Manager)

// WithDiagnosticSink routes prediction diagnostics to sink instead of the
// manager's logger.
func WithDiagnosticSink(sink DiagnosticSink) Option {
	return func(m *Manager) {
		if sink != nil {
			m.diag = sink
		}
	}
}

// NewManager wires a chain manager to the catalog store and the
// implementation registry.
func NewManager(store *catalog.Store, registry *parser.Registry, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		store:    store,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "chain"),
	}
	m.diag = LogSink(m.logger)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) emit(d Diagnostic) {
	if m.diag != nil {
		m.diag(d)
	}
}

// GetParserConfig returns the stored config named name. When no row exists
// but an implementation with that name is registered, the implementation's
// default config is persisted and returned, so registered parsers work out
// of the box without operator setup.
func (m *Manager) GetParserConfig(ctx context.Context, name string) (*catalog.ParserConfig, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "chain", "get config", "parser name is required", nil)
	}
	cfg, err := m.store.GetParserConfig(ctx, name)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}
	impl, ok := m.registry.Get(name)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "chain", "get config",
			fmt.Sprintf("no parser config or implementation named %q", name), nil)
	}
	created, err := m.store.UpsertParserConfig(ctx, m.registry.DefaultConfigFor(impl))
	if err != nil {
		return nil, err
	}
	m.logger.Info("created default parser config", logging.String(logging.FieldParser, created.Name))
	return created, nil
}

// ListParserConfigs returns every stored config ordered by name.
func (m *Manager) ListParserConfigs(ctx context.Context) ([]*catalog.ParserConfig, error) {
	return m.store.ListParserConfigs(ctx)
}

// UpsertParserConfig normalizes and stores cfg. Extensions and the output
// suffix are lowercased with a leading dot; dependency and tag lists are
// trimmed and deduplicated. Dependency references are not checked here; a
// config may name steps that do not exist yet, and ValidateDependencies
// reports dangling references across the whole graph.
func (m *Manager) UpsertParserConfig(ctx context.Context, cfg *catalog.ParserConfig) (*catalog.ParserConfig, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrValidation, "chain", "upsert config", "config is required", nil)
	}
	normalized := *cfg
	normalized.Name = strings.TrimSpace(cfg.Name)
	normalized.Implementation = strings.TrimSpace(cfg.Implementation)
	normalized.Extensions = normalizeExtensions(cfg.Extensions)
	normalized.OutputExt = normalizeSuffix(cfg.OutputExt)
	normalized.DependsOn = normalizeNames(cfg.DependsOn)
	normalized.RequiredTags = normalizeNames(cfg.RequiredTags)
	if normalized.Name == "" {
		return nil, services.Wrap(services.ErrValidation, "chain", "upsert config", "parser name is required", nil)
	}
	if normalized.Implementation == "" {
		return nil, services.Wrap(services.ErrValidation, "chain", "upsert config", "implementation name is required", nil)
	}
	return m.store.UpsertParserConfig(ctx, &normalized)
}

// ConfigPatch carries optional field updates for UpdateParserConfig. Nil
// fields leave the stored value unchanged.
type ConfigPatch struct {
	Implementation     *string
	Extensions         *[]string
	OutputExt          *string
	DependsOn          *[]string
	RequiredTags       *[]string
	AllowDerivatives   *bool
	AllowUserSelection *bool
	Enabled            *bool
	Settings           *string
}

// UpdateParserConfig applies a partial update to the named config. The
// config is resolved through GetParserConfig first, so patching a registered
// implementation's config materializes its default before the merge.
func (m *Manager) UpdateParserConfig(ctx context.Context, name string, patch ConfigPatch) (*catalog.ParserConfig, error) {
	cfg, err := m.GetParserConfig(ctx, name)
	if err != nil {
		return nil, err
	}
	updated := *cfg
	if patch.Implementation != nil {
		updated.Implementation = *patch.Implementation
	}
	if patch.Extensions != nil {
		updated.Extensions = *patch.Extensions
	}
	if patch.OutputExt != nil {
		updated.OutputExt = *patch.OutputExt
	}
	if patch.DependsOn != nil {
		updated.DependsOn = *patch.DependsOn
	}
	if patch.RequiredTags != nil {
		updated.RequiredTags = *patch.RequiredTags
	}
	if patch.AllowDerivatives != nil {
		updated.AllowDerivatives = *patch.AllowDerivatives
	}
	if patch.AllowUserSelection != nil {
		updated.AllowUserSelection = *patch.AllowUserSelection
	}
	if patch.Enabled != nil {
		updated.Enabled = *patch.Enabled
	}
	if patch.Settings != nil {
		updated.Settings = *patch.Settings
	}
	return m.UpsertParserConfig(ctx, &updated)
}

// DeleteParserConfig removes the named config outright. Disabling is the
// usual lifecycle; deletion is for configs created by mistake.
func (m *Manager) DeleteParserConfig(ctx context.Context, name string) (bool, error) {
	return m.store.DeleteParserConfig(ctx, strings.TrimSpace(name))
}

// EnsureDefaultConfigs seeds a default config for every registered
// implementation that has none stored yet. Existing configs are never
// touched, so operator edits survive restarts.
func (m *Manager) EnsureDefaultConfigs(ctx context.Context) error {
	for _, impl := range m.registry.All() {
		existing, err := m.store.GetParserConfig(ctx, impl.Name())
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := m.store.UpsertParserConfig(ctx, m.registry.DefaultConfigFor(impl)); err != nil {
			return err
		}
		m.logger.Info("seeded default parser config", logging.String(logging.FieldParser, impl.Name()))
	}
	return nil
}

func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		ext := normalizeSuffix(v)
		if ext == "" {
			continue
		}
		if _, dup := seen[ext]; dup {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}

func normalizeSuffix(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if !strings.HasPrefix(value, ".") {
		value = "." + value
	}
	return value
}

func normalizeNames(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		name := strings.TrimSpace(v)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
