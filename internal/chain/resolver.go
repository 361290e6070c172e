package chain

import (
	"context"
	"errors"
	"fmt"

	"hopper/internal/catalog"
	"hopper/internal/services"
)

// CircularDependencyError reports a dependency cycle discovered while
// resolving the execution order for a step.
type CircularDependencyError struct {
	Step string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected at step %q", e.Step)
}

// Unwrap ties the error into the service taxonomy so callers can classify it
// with errors.Is.
func (e *CircularDependencyError) Unwrap() error { return services.ErrCircularDependency }

// GetDependencyOrder returns step names in execution order for stepName:
// every dependency precedes its dependents and stepName comes last. A cycle
// anywhere in stepName's dependency graph aborts resolution with a
// CircularDependencyError naming the step where the cycle closed.
func (m *Manager) GetDependencyOrder(ctx context.Context, stepName string) ([]string, error) {
	configs, err := m.store.ListParserConfigs(ctx)
	if err != nil {
		return nil, err
	}
	byName := configsByName(configs)
	if _, ok := byName[stepName]; !ok {
		return nil, services.Wrap(services.ErrNotFound, "chain", "dependency order",
			fmt.Sprintf("unknown step %q", stepName), nil)
	}
	return appendDependencyOrder(nil, byName, stepName, map[string]bool{}, map[string]bool{})
}

// appendDependencyOrder walks step's dependency graph depth-first and
// appends post-order, so dependencies land before dependents. The visited
// and inProgress sets travel as arguments; no state is shared across
// resolutions. Dependencies naming unknown steps are skipped here because
// dangling references are a whole-graph validation concern, not an ordering
// one.
func appendDependencyOrder(order []string, configs map[string]*catalog.ParserConfig, step string, visited, inProgress map[string]bool) ([]string, error) {
	if visited[step] {
		return order, nil
	}
	if inProgress[step] {
		return nil, &CircularDependencyError{Step: step}
	}
	inProgress[step] = true
	for _, dep := range configs[step].DependsOn {
		if _, known := configs[dep]; !known {
			continue
		}
		var err error
		order, err = appendDependencyOrder(order, configs, dep, visited, inProgress)
		if err != nil {
			return nil, err
		}
	}
	delete(inProgress, step)
	visited[step] = true
	return append(order, step), nil
}

// ValidationReport lists every dependency problem found across the stored
// configs.
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateDependencies scans the whole config graph and accumulates missing
// dependency references and cycles into one report instead of failing on the
// first problem, so an operator sees everything wrong at once.
func (m *Manager) ValidateDependencies(ctx context.Context) (ValidationReport, error) {
	configs, err := m.store.ListParserConfigs(ctx)
	if err != nil {
		return ValidationReport{}, err
	}
	byName := configsByName(configs)
	report := ValidationReport{}
	for _, cfg := range configs {
		for _, dep := range cfg.DependsOn {
			if _, ok := byName[dep]; !ok {
				report.Errors = append(report.Errors,
					fmt.Sprintf("parser %q depends on unknown parser %q", cfg.Name, dep))
			}
		}
	}
	visited := map[string]bool{}
	for _, cfg := range configs {
		if visited[cfg.Name] {
			continue
		}
		if _, err := appendDependencyOrder(nil, byName, cfg.Name, visited, map[string]bool{}); err != nil {
			var cycle *CircularDependencyError
			if !errors.As(err, &cycle) {
				return ValidationReport{}, err
			}
			report.Errors = append(report.Errors,
				fmt.Sprintf("circular dependency involving parser %q", cycle.Step))
		}
	}
	report.Valid = len(report.Errors) == 0
	return report, nil
}

func configsByName(configs []*catalog.ParserConfig) map[string]*catalog.ParserConfig {
	byName := make(map[string]*catalog.ParserConfig, len(configs))
	for _, cfg := range configs {
		byName[cfg.Name] = cfg
	}
	return byName
}
