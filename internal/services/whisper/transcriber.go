// Package whisper runs a local whisper CLI as the transcribe parser
// implementation. The CLI writes its transcript next to the input and names
// it after the input's basename; Run collects that file into the configured
// output path so chained steps see the path arithmetic they predicted.
package whisper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"hopper/internal/parser"
	"hopper/internal/pricing"
	"hopper/internal/services"
)

// Command is the default whisper binary name, resolved through PATH.
const Command = "whisper"

// Transcriber is the transcribe parser implementation. The configured
// provider/model pair drives both the CLI model selection and per-minute
// pricing.
type Transcriber struct {
	binary        string
	provider      string
	model         string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewTranscriber creates a transcriber shelling out to binary, or the default
// PATH lookup name when empty.
func NewTranscriber(binary, provider, model string) *Transcriber {
	if strings.TrimSpace(binary) == "" {
		binary = Command
	}
	return &Transcriber{binary: binary, provider: provider, model: model}
}

// WithCommandRunner sets a custom command runner (for testing).
func (t *Transcriber) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	t.commandRunner = runner
}

// Name returns the registry key for the transcriber.
func (t *Transcriber) Name() string {
	return "transcribe"
}

// AcceptedExtensions lists the audio layouts handled by default.
func (t *Transcriber) AcceptedExtensions() []string {
	return []string{".mp3", ".wav"}
}

// OutputSuffix returns the extension appended to the input path.
func (t *Transcriber) OutputSuffix() string {
	return ".transcript.txt"
}

// DependsOn returns nil. Transcription accepts direct audio drops as well as
// converter output, so ordering comes from extensions, not declared deps.
func (t *Transcriber) DependsOn() []string {
	return nil
}

// Run transcribes req.InputPath and moves the transcript to req.OutputPath.
func (t *Transcriber) Run(ctx context.Context, req parser.Request) (string, error) {
	if req.InputPath == "" || req.OutputPath == "" {
		return "", services.Wrap(services.ErrValidation, t.Name(), "run", "input and output paths are required", nil)
	}
	outDir := filepath.Dir(req.InputPath)
	if err := t.run(ctx, buildArgs(req.InputPath, t.model, outDir)...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, t.Name(), "run", "whisper invocation failed", err)
	}

	// The CLI names the transcript after the input basename minus its
	// extension, so meeting.mov.mp3 produces meeting.mov.txt.
	base := strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
	produced := filepath.Join(outDir, base+".txt")
	if produced != req.OutputPath {
		if err := os.Rename(produced, req.OutputPath); err != nil {
			return "", services.Wrap(services.ErrExternalTool, t.Name(), "run", "collect transcript output", err)
		}
	}
	return req.OutputPath, nil
}

// EstimateCost prices transcription by approximate audio minutes.
func (t *Transcriber) EstimateCost(path string) (pricing.Estimate, error) {
	return pricing.TranscriptionCostForFile(path, t.provider, t.model)
}

// HealthCheck verifies the whisper binary is resolvable.
func (t *Transcriber) HealthCheck(ctx context.Context) parser.Health {
	if _, err := exec.LookPath(t.binary); err != nil {
		return parser.Unhealthy(t.Name(), fmt.Sprintf("whisper binary %q not found", t.binary))
	}
	return parser.Healthy(t.Name())
}

func (t *Transcriber) run(ctx context.Context, args ...string) error {
	if t.commandRunner != nil {
		return t.commandRunner(ctx, t.binary, args...)
	}
	cmd := exec.CommandContext(ctx, t.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", t.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func buildArgs(source, model, outputDir string) []string {
	args := []string{source}
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args,
		"--output_format", "txt",
		"--output_dir", outputDir,
	)
	return args
}
