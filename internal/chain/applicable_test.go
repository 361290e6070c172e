package chain_test

import (
	"context"
	"testing"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/testsupport"
)

func TestResolveExtensionPrefersLongestSuffix(t *testing.T) {
	known := []string{".mp3", ".txt", ".transcript.txt", ".mov"}

	cases := []struct {
		path string
		want string
	}{
		{"interview.mov.mp3.transcript.txt", ".transcript.txt"},
		{"notes.txt", ".txt"},
		{"meeting.mov", ".mov"},
		{"MEETING.MOV", ".mov"},
		{"archive.tar.gz", ".gz"},
		{"no-extension", ""},
	}
	for _, tc := range cases {
		if got := chain.ResolveExtension(tc.path, known); got != tc.want {
			t.Errorf("ResolveExtension(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}

	if got := chain.ResolveExtension("report.pdf", nil); got != ".pdf" {
		t.Errorf("expected plain extension fallback, got %q", got)
	}
}

func TestGetApplicableConfigsFiltering(t *testing.T) {
	manager, store, _, _ := newManager(t)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:             "summarize",
		Implementation:   "summarize",
		Extensions:       []string{".transcript.txt"},
		OutputExt:        ".summary.txt",
		AllowDerivatives: true,
		Enabled:          true,
	})
	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:             "index-notes",
		Implementation:   "index-notes",
		Extensions:       []string{".txt"},
		OutputExt:        ".index.json",
		AllowDerivatives: true,
		Enabled:          true,
	})
	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:           "disabled-step",
		Implementation: "disabled-step",
		Extensions:     []string{".transcript.txt"},
		OutputExt:      ".x",
		Enabled:        false,
	})
	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:             "tagged-step",
		Implementation:   "tagged-step",
		Extensions:       []string{".transcript.txt"},
		OutputExt:        ".tagged",
		RequiredTags:     []string{"meeting", "q3"},
		AllowDerivatives: true,
		Enabled:          true,
	})

	// The compound suffix wins resolution, so the plain .txt config never
	// sees derivative transcript names.
	configs, err := manager.GetApplicableConfigs(ctx, "interview.mov.mp3.transcript.txt", nil, true)
	if err != nil {
		t.Fatalf("GetApplicableConfigs failed: %v", err)
	}
	if len(configs) != 1 || configs[0].Name != "summarize" {
		t.Fatalf("expected only summarize, got %v", configNames(configs))
	}

	configs, err = manager.GetApplicableConfigs(ctx, "notes.txt", nil, false)
	if err != nil {
		t.Fatalf("GetApplicableConfigs failed: %v", err)
	}
	if len(configs) != 1 || configs[0].Name != "index-notes" {
		t.Fatalf("expected only index-notes, got %v", configNames(configs))
	}

	// All required tags must be present.
	configs, err = manager.GetApplicableConfigs(ctx, "call.transcript.txt", []string{"meeting"}, false)
	if err != nil {
		t.Fatalf("GetApplicableConfigs failed: %v", err)
	}
	if len(configs) != 1 || configs[0].Name != "summarize" {
		t.Fatalf("expected tagged-step excluded on partial tags, got %v", configNames(configs))
	}
	configs, err = manager.GetApplicableConfigs(ctx, "call.transcript.txt", []string{"meeting", "q3", "extra"}, false)
	if err != nil {
		t.Fatalf("GetApplicableConfigs failed: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected summarize and tagged-step, got %v", configNames(configs))
	}
}

func TestGetApplicableConfigsDerivativeGate(t *testing.T) {
	manager, store, _, _ := newManager(t)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:           "convert-video",
		Implementation: "convert-video",
		Extensions:     []string{".mov"},
		OutputExt:      ".mp3",
		Enabled:        true,
	})

	configs, err := manager.GetApplicableConfigs(ctx, "clip.mov", nil, false)
	if err != nil {
		t.Fatalf("GetApplicableConfigs failed: %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("expected original file accepted, got %v", configNames(configs))
	}

	configs, err = manager.GetApplicableConfigs(ctx, "clip.mov", nil, true)
	if err != nil {
		t.Fatalf("GetApplicableConfigs failed: %v", err)
	}
	if len(configs) != 0 {
		t.Fatalf("expected derivative rejected, got %v", configNames(configs))
	}
}

func TestGetReadyConfigsRequiresDependencies(t *testing.T) {
	manager, store, _, _ := newManager(t)
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

	ready, err := manager.GetReadyConfigs(ctx, "call.mp3", nil, nil, false)
	if err != nil {
		t.Fatalf("GetReadyConfigs failed: %v", err)
	}
	if len(ready) != 1 || ready[0].Name != "transcribe" {
		t.Fatalf("expected only transcribe ready, got %v", configNames(ready))
	}

	ready, err = manager.GetReadyConfigs(ctx, "call.mp3", nil, []string{"transcribe"}, false)
	if err != nil {
		t.Fatalf("GetReadyConfigs failed: %v", err)
	}
	if len(ready) != 2 {
		t.Fatalf("expected both ready once dependency completed, got %v", configNames(ready))
	}
}

func TestGetReadyConfigsWithImplementationsSkipsUnregistered(t *testing.T) {
	impl := &fakeImplementation{name: "transcribe", exts: []string{".mp3"}, suffix: ".transcript.txt"}
	manager, store, _, rec := newManager(t, impl)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:           "transcribe",
		Implementation: "transcribe",
		Extensions:     []string{".mp3"},
		OutputExt:      ".transcript.txt",
		Enabled:        true,
	})
	testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
		Name:           "vanished",
		Implementation: "gone-plugin",
		Extensions:     []string{".mp3"},
		OutputExt:      ".gone",
		Enabled:        true,
	})

	pairs, err := manager.GetReadyConfigsWithImplementations(ctx, "call.mp3", nil, nil, false)
	if err != nil {
		t.Fatalf("GetReadyConfigsWithImplementations failed: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Config.Name != "transcribe" {
		t.Fatalf("expected only transcribe paired, got %d pairs", len(pairs))
	}
	if pairs[0].Implementation.Name() != "transcribe" {
		t.Fatalf("expected implementation attached, got %q", pairs[0].Implementation.Name())
	}

	missing := rec.ofKind(chain.DiagnosticImplementationMissing)
	if len(missing) != 1 {
		t.Fatalf("expected one missing-implementation diagnostic, got %v", rec.diags)
	}
	if missing[0].Parser != "vanished" || missing[0].Path != "call.mp3" {
		t.Fatalf("unexpected diagnostic: %#v", missing[0])
	}
}

func configNames(configs []*catalog.ParserConfig) []string {
	names := make([]string, 0, len(configs))
	for _, cfg := range configs {
		names = append(names, cfg.Name)
	}
	return names
}
