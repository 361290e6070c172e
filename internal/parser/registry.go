package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"hopper/internal/catalog"
)

// Registry maps implementation names to implementations. It is built once at
// the composition root and read-only afterwards, so lookups need no locking.
type Registry struct {
	impls map[string]Implementation
}

// NewRegistry builds a registry from the provided implementations. Duplicate
// names are a wiring bug and fail loudly.
func NewRegistry(impls ...Implementation) (*Registry, error) {
	registry := &Registry{impls: make(map[string]Implementation, len(impls))}
	for _, impl := range impls {
		if impl == nil {
			return nil, fmt.Errorf("nil implementation registered")
		}
		name := impl.Name()
		if name == "" {
			return nil, fmt.Errorf("implementation with empty name registered")
		}
		if _, exists := registry.impls[name]; exists {
			return nil, fmt.Errorf("implementation %q registered twice", name)
		}
		registry.impls[name] = impl
	}
	return registry, nil
}

// Get returns the implementation registered under name.
func (r *Registry) Get(name string) (Implementation, bool) {
	impl, ok := r.impls[name]
	return impl, ok
}

// Names returns the registered implementation names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.impls))
	for name := range r.impls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered implementations sorted by name.
func (r *Registry) All() []Implementation {
	impls := make([]Implementation, 0, len(r.impls))
	for _, name := range r.Names() {
		impls = append(impls, r.impls[name])
	}
	return impls
}

// Health runs every implementation's health check and returns the results
// sorted by name.
func (r *Registry) Health(ctx context.Context) []Health {
	results := make([]Health, 0, len(r.impls))
	for _, impl := range r.All() {
		results = append(results, impl.HealthCheck(ctx))
	}
	return results
}

// DefaultConfigFor derives stored-configuration defaults for a registered
// implementation with the whole registry in view. An implementation whose
// accepted extension is another implementation's output suffix consumes
// intermediates, so it accepts derivatives even without declared dependencies.
func (r *Registry) DefaultConfigFor(impl Implementation) *catalog.ParserConfig {
	cfg := DefaultConfig(impl)
	if cfg.AllowDerivatives {
		return cfg
	}
	for _, ext := range cfg.Extensions {
		for name, other := range r.impls {
			if name == impl.Name() {
				continue
			}
			if strings.EqualFold(other.OutputSuffix(), ext) {
				cfg.AllowDerivatives = true
				return cfg
			}
		}
	}
	return cfg
}

// DefaultConfig derives the stored-configuration defaults from an
// implementation. Steps that depend on other parsers consume their outputs,
// so they accept derivatives by default; deployments can override either way.
func DefaultConfig(impl Implementation) *catalog.ParserConfig {
	return &catalog.ParserConfig{
		Name:               impl.Name(),
		Implementation:     impl.Name(),
		Extensions:         append([]string(nil), impl.AcceptedExtensions()...),
		OutputExt:          impl.OutputSuffix(),
		DependsOn:          append([]string(nil), impl.DependsOn()...),
		AllowDerivatives:   len(impl.DependsOn()) > 0,
		AllowUserSelection: true,
		Enabled:            true,
	}
}
