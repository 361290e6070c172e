package chain_test

import (
	"context"
	"testing"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/parser"
	"hopper/internal/pricing"
	"hopper/internal/testsupport"
)

// fakeImplementation satisfies parser.Implementation with a pluggable cost
// estimator so tests control pricing behavior per step.
type fakeImplementation struct {
	name     string
	exts     []string
	suffix   string
	deps     []string
	estimate func(path string) (pricing.Estimate, error)
}

func (f *fakeImplementation) Name() string                 { return f.name }
func (f *fakeImplementation) AcceptedExtensions() []string { return f.exts }
func (f *fakeImplementation) OutputSuffix() string         { return f.suffix }
func (f *fakeImplementation) DependsOn() []string          { return f.deps }

func (f *fakeImplementation) EstimateCost(path string) (pricing.Estimate, error) {
	if f.estimate != nil {
		return f.estimate(path)
	}
	return pricing.Estimate{}, nil
}

func (f *fakeImplementation) Run(_ context.Context, req parser.Request) (string, error) {
	return req.OutputPath, nil
}

func (f *fakeImplementation) HealthCheck(context.Context) parser.Health {
	return parser.Healthy(f.name)
}

// diagnosticRecorder collects diagnostics so tests can assert on the
// conditions the manager reports instead of scraping log output.
type diagnosticRecorder struct {
	diags []chain.Diagnostic
}

func (r *diagnosticRecorder) record(d chain.Diagnostic) {
	r.diags = append(r.diags, d)
}

func (r *diagnosticRecorder) ofKind(kind chain.DiagnosticKind) []chain.Diagnostic {
	var out []chain.Diagnostic
	for _, d := range r.diags {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func newManager(t testing.TB, impls ...parser.Implementation) (*chain.Manager, *catalog.Store, *config.Config, *diagnosticRecorder) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registry, err := parser.NewRegistry(impls...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	rec := &diagnosticRecorder{}
	manager := chain.NewManager(store, registry, logging.NewNop(), chain.WithDiagnosticSink(rec.record))
	return manager, store, cfg, rec
}

// transcriptionEstimator prices the file as whisper audio, the behavior the
// real transcribe and convert-video implementations share.
func transcriptionEstimator(path string) (pricing.Estimate, error) {
	return pricing.TranscriptionCostForFile(path, "openai", "whisper-1")
}

func summarizationEstimator(path string) (pricing.Estimate, error) {
	return pricing.SummarizationCostForFile(path, "openai", "gpt-4o-mini")
}

// seedVideoPipeline stores the three-step convert/transcribe/summarize
// config set with no dependencies, the shape the daemon ships by default.
func seedVideoPipeline(t testing.TB, store *catalog.Store) {
	t.Helper()
	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:           "convert-video",
		Implementation: "convert-video",
		Extensions:     []string{".mov", ".mp4"},
		OutputExt:      ".mp3",
		Enabled:        true,
	})
	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:             "transcribe",
		Implementation:   "transcribe",
		Extensions:       []string{".mp3", ".wav"},
		OutputExt:        ".transcript.txt",
		AllowDerivatives: true,
		Enabled:          true,
	})
	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:             "summarize",
		Implementation:   "summarize",
		Extensions:       []string{".transcript.txt"},
		OutputExt:        ".summary.txt",
		AllowDerivatives: true,
		Enabled:          true,
	})
}

func videoPipelineImplementations() []parser.Implementation {
	return []parser.Implementation{
		&fakeImplementation{
			name:     "convert-video",
			exts:     []string{".mov", ".mp4"},
			suffix:   ".mp3",
			estimate: transcriptionEstimator,
		},
		&fakeImplementation{
			name:     "transcribe",
			exts:     []string{".mp3", ".wav"},
			suffix:   ".transcript.txt",
			estimate: transcriptionEstimator,
		},
		&fakeImplementation{
			name:     "summarize",
			exts:     []string{".transcript.txt"},
			suffix:   ".summary.txt",
			estimate: summarizationEstimator,
		},
	}
}

func stepNames(steps []catalog.ProcessingStep) []string {
	names := make([]string, 0, len(steps))
	for _, step := range steps {
		names = append(names, step.Parser)
	}
	return names
}
