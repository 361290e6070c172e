package chain_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/parser"
	"hopper/internal/pricing"
	"hopper/internal/services"
	"hopper/internal/testsupport"
)

func TestPredictProcessingChainVideoPipeline(t *testing.T) {
	manager, store, cfg, _ := newManager(t, videoPipelineImplementations()...)
	seedVideoPipeline(t, store)
	ctx := context.Background()

	path := filepath.Join(cfg.Paths.WatchDir, "meeting.mov")
	testsupport.WriteFile(t, path, 3*1024*1024)

	steps, err := manager.PredictProcessingChain(ctx, path, nil)
	if err != nil {
		t.Fatalf("PredictProcessingChain failed: %v", err)
	}
	names := stepNames(steps)
	if len(names) != 3 || names[0] != "convert-video" || names[1] != "transcribe" || names[2] != "summarize" {
		t.Fatalf("unexpected chain: %v", names)
	}

	if steps[0].InputPath != path || steps[0].OutputPath != path+".mp3" {
		t.Fatalf("unexpected first step paths: %#v", steps[0])
	}
	if steps[1].InputPath != steps[0].OutputPath || steps[1].OutputPath != path+".mp3.transcript.txt" {
		t.Fatalf("expected steps to chain off prior outputs, got %#v", steps[1])
	}
	if steps[2].OutputPath != path+".mp3.transcript.txt.summary.txt" {
		t.Fatalf("unexpected final output: %q", steps[2].OutputPath)
	}

	// 3 MB of audio is two minutes at whisper rates; the later steps read
	// virtual paths and estimate zero.
	if steps[0].EstimatedCost != 0.012 {
		t.Fatalf("expected 0.012 for the real input, got %v", steps[0].EstimatedCost)
	}
	for _, step := range steps[1:] {
		if step.EstimatedCost != 0 {
			t.Fatalf("expected zero cost for virtual input, got %#v", step)
		}
	}
}

func TestPredictProcessingChainIdempotent(t *testing.T) {
	manager, store, cfg, _ := newManager(t, videoPipelineImplementations()...)
	seedVideoPipeline(t, store)
	ctx := context.Background()

	path := filepath.Join(cfg.Paths.WatchDir, "meeting.mov")
	testsupport.WriteFile(t, path, 3*1024*1024)

	first, err := manager.PredictProcessingChain(ctx, path, nil)
	if err != nil {
		t.Fatalf("first prediction failed: %v", err)
	}
	second, err := manager.PredictProcessingChain(ctx, path, nil)
	if err != nil {
		t.Fatalf("second prediction failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected identical chains, got %d and %d steps", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.Parser != b.Parser || a.InputPath != b.InputPath || a.OutputPath != b.OutputPath || a.EstimatedCost != b.EstimatedCost {
			t.Fatalf("step %d differs: %#v vs %#v", i, a, b)
		}
	}
}

func TestPredictionPeelsCompletedSteps(t *testing.T) {
	manager, store, cfg, _ := newManager(t, videoPipelineImplementations()...)
	seedVideoPipeline(t, store)
	ctx := context.Background()

	path := filepath.Join(cfg.Paths.WatchDir, "meeting.mov")
	testsupport.WriteFile(t, path, 3*1024*1024)

	full, err := manager.PredictProcessingChain(ctx, path, nil)
	if err != nil {
		t.Fatalf("full prediction failed: %v", err)
	}
	if len(full) != 3 {
		t.Fatalf("expected 3 steps, got %v", stepNames(full))
	}

	// As each step completes the remaining forecast, seeded with that step's
	// output path, is exactly the tail of the original chain.
	tail, err := manager.PredictProcessingChainFrom(ctx, full[0].OutputPath, nil, []string{"convert-video"}, true)
	if err != nil {
		t.Fatalf("tail prediction failed: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("expected 2 remaining steps, got %v", stepNames(tail))
	}
	for i, step := range tail {
		want := full[i+1]
		if step.Parser != want.Parser || step.InputPath != want.InputPath || step.OutputPath != want.OutputPath {
			t.Fatalf("tail step %d = %#v, want %#v", i, step, want)
		}
	}

	last, err := manager.PredictProcessingChainFrom(ctx, full[1].OutputPath, nil, []string{"convert-video", "transcribe"}, true)
	if err != nil {
		t.Fatalf("last prediction failed: %v", err)
	}
	if len(last) != 1 || last[0].Parser != "summarize" {
		t.Fatalf("expected only summarize left, got %v", stepNames(last))
	}

	// Completed steps never reappear, even when their config still matches
	// the input path.
	repeat, err := manager.PredictProcessingChainFrom(ctx, path, nil, []string{"convert-video"}, false)
	if err != nil {
		t.Fatalf("repeat prediction failed: %v", err)
	}
	for _, step := range repeat {
		if step.Parser == "convert-video" {
			t.Fatalf("completed step predicted again: %v", stepNames(repeat))
		}
	}
}

func TestPredictionResolvesSamePathDependency(t *testing.T) {
	transcribe := &fakeImplementation{name: "transcribe", exts: []string{".mp3"}, suffix: ".transcript.txt"}
	diarize := &fakeImplementation{name: "diarize", exts: []string{".mp3"}, suffix: ".speakers.json"}
	manager, store, cfg, _ := newManager(t, transcribe, diarize)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:           "transcribe",
		Implementation: "transcribe",
		Extensions:     []string{".mp3"},
		OutputExt:      ".transcript.txt",
		Enabled:        true,
	})
	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:           "diarize",
		Implementation: "diarize",
		Extensions:     []string{".mp3"},
		OutputExt:      ".speakers.json",
		DependsOn:      []string{"transcribe"},
		Enabled:        true,
	})

	path := filepath.Join(cfg.Paths.WatchDir, "call.mp3")
	testsupport.WriteFile(t, path, 1024)

	// diarize needs transcribe, which never runs ahead of it within this
	// file's lineage, so only transcribe is forecast up front.
	steps, err := manager.PredictProcessingChain(ctx, path, nil)
	if err != nil {
		t.Fatalf("PredictProcessingChain failed: %v", err)
	}
	if len(steps) != 1 || steps[0].Parser != "transcribe" {
		t.Fatalf("expected only transcribe, got %v", stepNames(steps))
	}
	if len(steps[0].DependsOn) != 0 {
		t.Fatalf("expected no dependencies copied, got %v", steps[0].DependsOn)
	}

	// Once transcribe completes, diarize becomes ready at the same path.
	steps, err = manager.PredictProcessingChainFrom(ctx, path, nil, []string{"transcribe"}, false)
	if err != nil {
		t.Fatalf("completed-aware prediction failed: %v", err)
	}
	if len(steps) != 1 || steps[0].Parser != "diarize" {
		t.Fatalf("expected diarize after transcribe, got %v", stepNames(steps))
	}
	if len(steps[0].DependsOn) != 1 || steps[0].DependsOn[0] != "transcribe" {
		t.Fatalf("expected config dependencies copied onto step, got %v", steps[0].DependsOn)
	}
}

func TestPredictionDegradesToZeroCostWhenInputMissing(t *testing.T) {
	manager, store, cfg, rec := newManager(t, videoPipelineImplementations()...)
	seedVideoPipeline(t, store)
	ctx := context.Background()

	path := filepath.Join(cfg.Paths.WatchDir, "ghost.mov")

	steps, err := manager.PredictProcessingChain(ctx, path, nil)
	if err != nil {
		t.Fatalf("PredictProcessingChain failed: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected full chain despite missing input, got %v", stepNames(steps))
	}
	for _, step := range steps {
		if step.EstimatedCost != 0 {
			t.Fatalf("expected zero cost, got %#v", step)
		}
	}

	// Only the real input warrants a warning; virtual intermediates are
	// expected to be absent.
	failures := rec.ofKind(chain.DiagnosticEstimationFailure)
	if len(failures) != 1 {
		t.Fatalf("expected one estimation diagnostic, got %v", rec.diags)
	}
	if failures[0].Parser != "convert-video" || failures[0].Path != path {
		t.Fatalf("unexpected diagnostic: %#v", failures[0])
	}
}

func TestPredictionFailsHardOnPricingConfigError(t *testing.T) {
	impls := []parser.Implementation{
		&fakeImplementation{
			name:     "convert-video",
			exts:     []string{".mov"},
			suffix:   ".mp3",
			estimate: transcriptionEstimator,
		},
		&fakeImplementation{
			name:   "transcribe",
			exts:   []string{".mp3"},
			suffix: ".transcript.txt",
			estimate: func(path string) (pricing.Estimate, error) {
				return pricing.TranscriptionCostForFile(path, "openai", "missing-model")
			},
		},
	}
	manager, store, cfg, _ := newManager(t, impls...)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:           "convert-video",
		Implementation: "convert-video",
		Extensions:     []string{".mov"},
		OutputExt:      ".mp3",
		Enabled:        true,
	})
	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:             "transcribe",
		Implementation:   "transcribe",
		Extensions:       []string{".mp3"},
		OutputExt:        ".transcript.txt",
		AllowDerivatives: true,
		Enabled:          true,
	})

	path := filepath.Join(cfg.Paths.WatchDir, "meeting.mov")
	testsupport.WriteFile(t, path, 1024)

	// The pricing table is consulted before any stat, so a bad model fails
	// the prediction even though transcribe's input is virtual.
	_, err := manager.PredictProcessingChain(ctx, path, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
