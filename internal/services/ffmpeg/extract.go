package ffmpeg

import (
	"context"

	"hopper/internal/parser"
	"hopper/internal/pricing"
	"hopper/internal/services"
)

// Extractor is the extract-audio parser implementation. It normalizes
// standalone audio containers to mono 16kHz WAV so they can feed the same
// transcription path as converted video.
type Extractor struct {
	client *Client
}

// NewExtractor wires an extractor to the given client.
func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

// Name returns the registry key for the extractor.
func (e *Extractor) Name() string {
	return "extract-audio"
}

// AcceptedExtensions lists the audio containers handled by default.
func (e *Extractor) AcceptedExtensions() []string {
	return []string{".m4a", ".flac", ".ogg", ".aac"}
}

// OutputSuffix returns the extension appended to the input path.
func (e *Extractor) OutputSuffix() string {
	return ".wav"
}

// DependsOn returns nil: extraction starts chains.
func (e *Extractor) DependsOn() []string {
	return nil
}

// Run decodes req.InputPath into req.OutputPath.
func (e *Extractor) Run(ctx context.Context, req parser.Request) (string, error) {
	if req.InputPath == "" || req.OutputPath == "" {
		return "", services.Wrap(services.ErrValidation, e.Name(), "run", "input and output paths are required", nil)
	}
	if err := e.client.ExtractWAV(ctx, req.InputPath, req.OutputPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, e.Name(), "run", "audio extraction failed", err)
	}
	return req.OutputPath, nil
}

// EstimateCost reports zero: extraction runs locally with no metered backend.
func (e *Extractor) EstimateCost(string) (pricing.Estimate, error) {
	return pricing.Estimate{}, nil
}

// HealthCheck verifies the ffmpeg binary is resolvable.
func (e *Extractor) HealthCheck(ctx context.Context) parser.Health {
	return binaryHealth(e.Name(), e.client)
}
