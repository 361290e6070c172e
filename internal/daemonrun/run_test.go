package daemonrun

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"hopper/internal/config"
)

func TestBuildRegistryWiresBuiltins(t *testing.T) {
	cfg := config.Default()

	registry, err := BuildRegistry(&cfg)
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}

	want := []string{"convert-video", "extract-audio", "summarize", "transcribe"}
	got := registry.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d implementations, got %v", len(want), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("implementation %d: expected %q, got %q", i, name, got[i])
		}
	}

	expectations := map[string]string{
		"convert-video": ".mp3",
		"extract-audio": ".wav",
		"transcribe":    ".transcript.txt",
		"summarize":     ".summary.txt",
	}
	for name, suffix := range expectations {
		impl, ok := registry.Get(name)
		if !ok {
			t.Fatalf("implementation %q not registered", name)
		}
		if impl.OutputSuffix() != suffix {
			t.Errorf("%s output suffix: expected %q, got %q", name, suffix, impl.OutputSuffix())
		}
	}
}

func TestBuildRegistryRequiresConfig(t *testing.T) {
	if _, err := BuildRegistry(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hopperd.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("pid file content %q: %v", data, err)
	}
	if pid != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), pid)
	}

	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be a no-op, got %v", err)
	}
}
