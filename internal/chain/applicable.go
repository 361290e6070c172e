package chain

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"hopper/internal/catalog"
	"hopper/internal/parser"
)

// ResolveExtension returns the effective extension for path. The longest
// known suffix wins, so chained outputs such as "a.mov.mp3.transcript.txt"
// resolve to ".transcript.txt" rather than ".txt"; with no compound match it
// falls back to the plain trailing extension. Matching is case-insensitive.
func ResolveExtension(path string, known []string) string {
	lower := strings.ToLower(path)
	best := ""
	for _, ext := range known {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || !strings.HasSuffix(lower, ext) {
			continue
		}
		if len(ext) > len(best) {
			best = ext
		}
	}
	if best != "" {
		return best
	}
	return strings.ToLower(filepath.Ext(path))
}

// KnownExtensions collects every input extension and output suffix declared
// across configs. Output suffixes count because they are how compound
// derivative names come into existence.
func KnownExtensions(configs []*catalog.ParserConfig) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(ext string) {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			return
		}
		if _, dup := seen[ext]; dup {
			return
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	for _, cfg := range configs {
		for _, ext := range cfg.Extensions {
			add(ext)
		}
		add(cfg.OutputExt)
	}
	return out
}

func configMatches(cfg *catalog.ParserConfig, resolvedExt string, tags map[string]struct{}, derivative bool) bool {
	if !cfg.Enabled {
		return false
	}
	if derivative && !cfg.AllowDerivatives {
		return false
	}
	matched := false
	for _, ext := range cfg.Extensions {
		if strings.EqualFold(ext, resolvedExt) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, tag := range cfg.RequiredTags {
		if _, ok := tags[tag]; !ok {
			return false
		}
	}
	return true
}

func applicableConfigs(configs []*catalog.ParserConfig, path string, tags []string, derivative bool) []*catalog.ParserConfig {
	resolved := ResolveExtension(path, KnownExtensions(configs))
	tagSet := toSet(tags)
	var out []*catalog.ParserConfig
	for _, cfg := range configs {
		if configMatches(cfg, resolved, tagSet, derivative) {
			out = append(out, cfg)
		}
	}
	return out
}

func readyFrom(configs []*catalog.ParserConfig, path string, tags []string, completed map[string]struct{}, derivative bool) []*catalog.ParserConfig {
	var out []*catalog.ParserConfig
	for _, cfg := range applicableConfigs(configs, path, tags, derivative) {
		if depsSatisfied(cfg, completed) {
			out = append(out, cfg)
		}
	}
	return out
}

func depsSatisfied(cfg *catalog.ParserConfig, completed map[string]struct{}) bool {
	for _, dep := range cfg.DependsOn {
		if _, ok := completed[dep]; !ok {
			return false
		}
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// GetApplicableConfigs returns the enabled configs whose extension, tag, and
// derivative rules all accept the file at path.
func (m *Manager) GetApplicableConfigs(ctx context.Context, path string, tags []string, derivative bool) ([]*catalog.ParserConfig, error) {
	configs, err := m.store.ListParserConfigs(ctx)
	if err != nil {
		return nil, err
	}
	return applicableConfigs(configs, path, tags, derivative), nil
}

// GetReadyConfigs filters applicable configs down to those whose every
// dependency appears in completed.
func (m *Manager) GetReadyConfigs(ctx context.Context, path string, tags, completed []string, derivative bool) ([]*catalog.ParserConfig, error) {
	configs, err := m.store.ListParserConfigs(ctx)
	if err != nil {
		return nil, err
	}
	return readyFrom(configs, path, tags, toSet(completed), derivative), nil
}

// ConfigWithImplementation pairs a ready config with the registered
// implementation it binds to.
type ConfigWithImplementation struct {
	Config         *catalog.ParserConfig
	Implementation parser.Implementation
}

// GetReadyConfigsWithImplementations resolves each ready config to its
// implementation. A config naming an unregistered implementation is skipped
// with a diagnostic rather than failing the lookup, so one misconfigured
// step cannot block the others.
func (m *Manager) GetReadyConfigsWithImplementations(ctx context.Context, path string, tags, completed []string, derivative bool) ([]ConfigWithImplementation, error) {
	ready, err := m.GetReadyConfigs(ctx, path, tags, completed, derivative)
	if err != nil {
		return nil, err
	}
	return m.pairImplementations(ready, path, nil), nil
}

// pairImplementations attaches implementations to configs, dropping configs
// with no registered handler. When warned is non-nil it deduplicates the
// missing-implementation diagnostic per implementation name, which keeps a
// multi-pass prediction from repeating itself.
func (m *Manager) pairImplementations(configs []*catalog.ParserConfig, path string, warned map[string]struct{}) []ConfigWithImplementation {
	out := make([]ConfigWithImplementation, 0, len(configs))
	for _, cfg := range configs {
		impl, ok := m.registry.Get(cfg.Implementation)
		if !ok {
			if warned != nil {
				if _, done := warned[cfg.Implementation]; done {
					continue
				}
				warned[cfg.Implementation] = struct{}{}
			}
			m.emit(Diagnostic{
				Kind:   DiagnosticImplementationMissing,
				Parser: cfg.Name,
				Path:   path,
				Detail: fmt.Sprintf("implementation %q is not registered", cfg.Implementation),
			})
			continue
		}
		out = append(out, ConfigWithImplementation{Config: cfg, Implementation: impl})
	}
	return out
}
