package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"hopper/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWatch := filepath.Join(tempHome, "hopper", "inbox")
	if cfg.Paths.WatchDir != wantWatch {
		t.Fatalf("unexpected watch dir: got %q want %q", cfg.Paths.WatchDir, wantWatch)
	}
	wantStaging := filepath.Join(tempHome, ".local", "share", "hopper", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7787" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Workflow.AutoApprove {
		t.Fatal("expected auto approve disabled by default")
	}
	if cfg.Transcription.Provider != "openai" || cfg.Transcription.Model != "whisper-1" {
		t.Fatalf("unexpected transcription defaults: %+v", cfg.Transcription)
	}
	if cfg.Summarization.BaseURL == "" {
		t.Fatal("expected summarization base url default")
	}
	if len(cfg.Watch.Extensions) == 0 {
		t.Fatal("expected default watch extensions")
	}
	for _, ext := range cfg.Watch.Extensions {
		if !strings.HasPrefix(ext, ".") {
			t.Fatalf("expected dot-prefixed extension, got %q", ext)
		}
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WatchDir, cfg.Paths.StagingDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "hopper.toml")

	type payload struct {
		Workflow struct {
			QueuePollInterval int  `toml:"queue_poll_interval"`
			AutoApprove       bool `toml:"auto_approve"`
		} `toml:"workflow"`
		Watch struct {
			Extensions []string `toml:"extensions"`
		} `toml:"watch"`
		Summarization struct {
			Model string `toml:"model"`
		} `toml:"summarization"`
	}
	custom := payload{}
	custom.Workflow.QueuePollInterval = 20
	custom.Workflow.AutoApprove = true
	custom.Watch.Extensions = []string{"MP3", ".mp3", "wav", ""}
	custom.Summarization.Model = "gpt-4o"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Workflow.QueuePollInterval != 20 {
		t.Fatalf("expected queue poll interval 20, got %d", cfg.Workflow.QueuePollInterval)
	}
	if !cfg.Workflow.AutoApprove {
		t.Fatal("expected auto approve from file")
	}
	if cfg.Summarization.Model != "gpt-4o" {
		t.Fatalf("expected summarization model override, got %q", cfg.Summarization.Model)
	}
	want := []string{".mp3", ".wav"}
	if len(cfg.Watch.Extensions) != len(want) {
		t.Fatalf("expected normalized extensions %v, got %v", want, cfg.Watch.Extensions)
	}
	for i, ext := range want {
		if cfg.Watch.Extensions[i] != ext {
			t.Fatalf("expected extension %q at %d, got %v", ext, i, cfg.Watch.Extensions)
		}
	}
}

func TestEnvVarOverridesConfigFileForAPIKey(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "hopper.toml")

	type payload struct {
		Summarization struct {
			APIKey string `toml:"api_key"`
		} `toml:"summarization"`
	}
	custom := payload{}
	custom.Summarization.APIKey = "file-key"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("SUMMARIZER_API_KEY", "env-key")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Summarization.APIKey != "env-key" {
		t.Errorf("expected summarizer key from env, got %q", cfg.Summarization.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_api_key_here") {
		t.Fatalf("sample config missing placeholder API key: %s", contents)
	}

	// Validate it decodes
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.WatchDir, "hopper") {
			t.Fatalf("expected watch dir to contain hopper, got %q", cfg.Paths.WatchDir)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Watch.PollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive watch poll interval")
	}

	cfg = config.Default()
	cfg.Workflow.QueuePollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive queue poll interval")
	}

	cfg = config.Default()
	cfg.Workflow.JobTimeout = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative job timeout")
	}

	cfg = config.Default()
	cfg.Transcription.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty transcription model")
	}

	cfg = config.Default()
	cfg.Summarization.Provider = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty summarization provider")
	}

	cfg = config.Default()
	cfg.Paths.StagingDir = cfg.Paths.WatchDir
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when staging dir matches watch dir")
	}
}

func TestSummarizerLLMTrimsValues(t *testing.T) {
	cfg := config.Default()
	cfg.Summarization.APIKey = "  secret  "
	cfg.Summarization.Model = " gpt-4o-mini "
	llm := cfg.SummarizerLLM()
	if llm.APIKey != "secret" {
		t.Fatalf("expected trimmed api key, got %q", llm.APIKey)
	}
	if llm.Model != "gpt-4o-mini" {
		t.Fatalf("expected trimmed model, got %q", llm.Model)
	}
	if llm.TimeoutSeconds <= 0 {
		t.Fatalf("expected positive timeout, got %d", llm.TimeoutSeconds)
	}
}
