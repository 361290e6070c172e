// Package summarizer turns transcripts into short summaries through an
// OpenAI-compatible chat-completions endpoint. The client carries the retry
// and backoff behavior remote completion APIs need; the Summarizer type binds
// it into the parser registry.
package summarizer

import (
	"context"
	"os"

	"hopper/internal/parser"
	"hopper/internal/pricing"
	"hopper/internal/services"
)

// Summarizer is the summarize parser implementation.
type Summarizer struct {
	client   *Client
	provider string
}

// NewSummarizer wires a summarizer to the given client and the pricing
// provider matching the client's model.
func NewSummarizer(client *Client, provider string) *Summarizer {
	return &Summarizer{client: client, provider: provider}
}

// Name returns the registry key for the summarizer.
func (s *Summarizer) Name() string {
	return "summarize"
}

// AcceptedExtensions lists the transcript layout handled by default.
func (s *Summarizer) AcceptedExtensions() []string {
	return []string{".transcript.txt"}
}

// OutputSuffix returns the extension appended to the input path.
func (s *Summarizer) OutputSuffix() string {
	return ".summary.txt"
}

// DependsOn returns nil. Summaries chain off transcripts through the compound
// extension, not declared deps.
func (s *Summarizer) DependsOn() []string {
	return nil
}

// Run reads the transcript at req.InputPath, requests a summary, and writes
// it to req.OutputPath.
func (s *Summarizer) Run(ctx context.Context, req parser.Request) (string, error) {
	if req.InputPath == "" || req.OutputPath == "" {
		return "", services.Wrap(services.ErrValidation, s.Name(), "run", "input and output paths are required", nil)
	}
	if s.client == nil || !s.client.Configured() {
		return "", services.Wrap(services.ErrConfiguration, s.Name(), "run", "summarization api key or model not configured", nil)
	}
	transcript, err := os.ReadFile(req.InputPath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, s.Name(), "run", "read transcript", err)
	}
	summary, err := s.client.Summarize(ctx, string(transcript))
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, s.Name(), "run", "summarization request failed", err)
	}
	if err := os.WriteFile(req.OutputPath, []byte(summary+"\n"), 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, s.Name(), "run", "write summary", err)
	}
	return req.OutputPath, nil
}

// EstimateCost prices summarization by approximate transcript tokens.
func (s *Summarizer) EstimateCost(path string) (pricing.Estimate, error) {
	model := ""
	if s.client != nil {
		model = s.client.Model()
	}
	return pricing.SummarizationCostForFile(path, s.provider, model)
}

// HealthCheck verifies credentials are present. It deliberately makes no
// network call: health sweeps run often and must not spend API quota.
func (s *Summarizer) HealthCheck(ctx context.Context) parser.Health {
	if s.client == nil {
		return parser.Unhealthy(s.Name(), "summarizer client unavailable")
	}
	if s.client.Model() == "" {
		return parser.Unhealthy(s.Name(), "summarization model not configured")
	}
	if !s.client.Configured() {
		return parser.Unhealthy(s.Name(), "summarization api key not configured")
	}
	return parser.Healthy(s.Name())
}
