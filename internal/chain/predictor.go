package chain

import (
	"context"
	"errors"
	"fmt"

	"hopper/internal/catalog"
	"hopper/internal/parser"
	"hopper/internal/services"
)

// PredictProcessingChain forecasts the full processing chain for a fresh
// original file with no history.
func (m *Manager) PredictProcessingChain(ctx context.Context, path string, tags []string) ([]catalog.ProcessingStep, error) {
	return m.PredictProcessingChainFrom(ctx, path, tags, nil, false)
}

// PredictProcessingChainFrom forecasts the remaining chain for a file whose
// history may be partially complete. completed holds finished step names and
// derivative marks inputs that are themselves outputs of a prior step.
//
// Prediction is virtual path arithmetic: each predicted step's output path
// is currentPath + outputExt, and the next pass matches configs against that
// not-yet-existing path. The filesystem is only consulted by cost estimation
// against the real input; estimates against virtual paths degrade to zero.
// Passes repeat until one adds nothing.
//
// Whether a pass sees the path as derivative is derivative || iteration > 0:
// once any step has been predicted, every later virtual path is treated as a
// derivative. An original file can therefore be reclassified after its first
// predicted step; that approximation is deliberate.
func (m *Manager) PredictProcessingChainFrom(ctx context.Context, path string, tags, completed []string, derivative bool) ([]catalog.ProcessingStep, error) {
	configs, err := m.store.ListParserConfigs(ctx)
	if err != nil {
		return nil, err
	}

	completedSet := toSet(completed)
	warned := make(map[string]struct{})
	currentPath := path
	var chain []catalog.ProcessingStep

	for iteration := 0; ; iteration++ {
		treatAsDerivative := derivative || iteration > 0

		ready := readyFrom(configs, currentPath, tags, completedSet, treatAsDerivative)
		added := false
		for _, pair := range m.pairImplementations(ready, currentPath, warned) {
			cfg := pair.Config
			if _, done := completedSet[cfg.Name]; done {
				continue
			}
			cost, err := m.estimateStepCost(pair.Implementation, cfg.Name, currentPath, path)
			if err != nil {
				return nil, err
			}
			outputPath := currentPath + cfg.OutputExt
			chain = append(chain, catalog.ProcessingStep{
				Parser:        cfg.Name,
				InputPath:     currentPath,
				OutputPath:    outputPath,
				EstimatedCost: cost,
				DependsOn:     append([]string(nil), cfg.DependsOn...),
			})
			completedSet[cfg.Name] = struct{}{}
			currentPath = outputPath
			added = true
		}
		if !added {
			return chain, nil
		}
	}
}

// estimateStepCost prices one predicted step. Configuration errors (unknown
// pricing provider or model) fail the whole prediction; anything else, which
// in practice means the input cannot be statted or read, degrades to a zero
// estimate. The failure diagnostic only fires when the input is the real
// original file, since virtual intermediate paths are expected to be absent.
func (m *Manager) estimateStepCost(impl parser.Implementation, parserName, inputPath, originalPath string) (float64, error) {
	est, err := impl.EstimateCost(inputPath)
	if err == nil {
		return est.Cost, nil
	}
	if errors.Is(err, services.ErrConfiguration) {
		return 0, fmt.Errorf("estimate %s: %w", parserName, err)
	}
	if inputPath == originalPath {
		m.emit(Diagnostic{
			Kind:   DiagnosticEstimationFailure,
			Parser: parserName,
			Path:   inputPath,
			Detail: err.Error(),
		})
	}
	return 0, nil
}
