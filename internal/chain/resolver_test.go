package chain_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/services"
	"hopper/internal/testsupport"
)

func seedDependencyGraph(t *testing.T, store *catalog.Store, deps map[string][]string) {
	t.Helper()
	for name, dependsOn := range deps {
		testsupport.SeedParserConfig(t, store, &catalog.ParserConfig{
			Name:           name,
			Implementation: name,
			Extensions:     []string{".any"},
			OutputExt:      ".out",
			DependsOn:      dependsOn,
			Enabled:        true,
		})
	}
}

func TestGetDependencyOrderLinearChain(t *testing.T) {
	manager, store, _, _ := newManager(t)
	seedDependencyGraph(t, store, map[string][]string{
		"extract-audio": nil,
		"transcribe":    {"extract-audio"},
		"summarize":     {"transcribe"},
	})

	order, err := manager.GetDependencyOrder(context.Background(), "summarize")
	if err != nil {
		t.Fatalf("GetDependencyOrder failed: %v", err)
	}
	if len(order) != 3 || order[0] != "extract-audio" || order[1] != "transcribe" || order[2] != "summarize" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestGetDependencyOrderDiamond(t *testing.T) {
	manager, store, _, _ := newManager(t)
	seedDependencyGraph(t, store, map[string][]string{
		"ingest":  nil,
		"audio":   {"ingest"},
		"caption": {"ingest"},
		"publish": {"audio", "caption"},
	})

	order, err := manager.GetDependencyOrder(context.Background(), "publish")
	if err != nil {
		t.Fatalf("GetDependencyOrder failed: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("expected each step once, got %v", order)
	}
	position := make(map[string]int, len(order))
	for i, name := range order {
		position[name] = i
	}
	if position["ingest"] > position["audio"] || position["ingest"] > position["caption"] {
		t.Fatalf("expected shared dependency first, got %v", order)
	}
	if order[len(order)-1] != "publish" {
		t.Fatalf("expected requested step last, got %v", order)
	}
}

func TestGetDependencyOrderDetectsCycle(t *testing.T) {
	manager, store, _, _ := newManager(t)
	seedDependencyGraph(t, store, map[string][]string{
		"render": {"upload"},
		"upload": {"render"},
	})

	for _, step := range []string{"render", "upload"} {
		_, err := manager.GetDependencyOrder(context.Background(), step)
		if err == nil {
			t.Fatalf("expected cycle error for %s", step)
		}
		var cycle *chain.CircularDependencyError
		if !errors.As(err, &cycle) {
			t.Fatalf("expected CircularDependencyError, got %v", err)
		}
		if cycle.Step != step {
			t.Fatalf("expected cycle reported at %q, got %q", step, cycle.Step)
		}
		if !errors.Is(err, services.ErrCircularDependency) {
			t.Fatalf("expected circular dependency classification, got %v", err)
		}
	}
}

func TestGetDependencyOrderUnknownStep(t *testing.T) {
	manager, _, _, _ := newManager(t)

	_, err := manager.GetDependencyOrder(context.Background(), "ghost")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGetDependencyOrderSkipsDanglingReference(t *testing.T) {
	manager, store, _, _ := newManager(t)
	seedDependencyGraph(t, store, map[string][]string{
		"transcribe": {"ghost"},
	})

	order, err := manager.GetDependencyOrder(context.Background(), "transcribe")
	if err != nil {
		t.Fatalf("GetDependencyOrder failed: %v", err)
	}
	if len(order) != 1 || order[0] != "transcribe" {
		t.Fatalf("expected dangling reference skipped, got %v", order)
	}
}

func TestValidateDependenciesAccumulatesProblems(t *testing.T) {
	manager, store, _, _ := newManager(t)
	seedDependencyGraph(t, store, map[string][]string{
		"render":    {"upload"},
		"upload":    {"render"},
		"summarize": {"ghost"},
		"archive":   nil,
	})

	report, err := manager.ValidateDependencies(context.Background())
	if err != nil {
		t.Fatalf("ValidateDependencies failed: %v", err)
	}
	if report.Valid {
		t.Fatal("expected invalid report")
	}
	if len(report.Errors) != 3 {
		t.Fatalf("expected 3 problems, got %v", report.Errors)
	}

	var missing, cycles int
	for _, msg := range report.Errors {
		switch {
		case strings.Contains(msg, "unknown parser"):
			missing++
		case strings.Contains(msg, "circular dependency"):
			cycles++
		}
	}
	if missing != 1 {
		t.Fatalf("expected one missing reference, got %v", report.Errors)
	}
	if cycles != 2 {
		t.Fatalf("expected the cycle flagged from both members, got %v", report.Errors)
	}
}

func TestValidateDependenciesCleanGraph(t *testing.T) {
	manager, store, _, _ := newManager(t)
	seedDependencyGraph(t, store, map[string][]string{
		"extract-audio": nil,
		"transcribe":    {"extract-audio"},
		"summarize":     {"transcribe"},
	})

	report, err := manager.ValidateDependencies(context.Background())
	if err != nil {
		t.Fatalf("ValidateDependencies failed: %v", err)
	}
	if !report.Valid || len(report.Errors) != 0 {
		t.Fatalf("expected clean report, got %#v", report)
	}
}
