package ffmpeg

import (
	"context"

	"hopper/internal/parser"
	"hopper/internal/pricing"
	"hopper/internal/services"
)

// Converter is the convert-video parser implementation. It transcodes video
// containers into transcription-ready MP3 audio; the step is priced as the
// audio transcription its output feeds.
type Converter struct {
	client   *Client
	provider string
	model    string
}

// NewConverter wires a converter to the given client and the transcription
// provider/model pair used for cost estimates.
func NewConverter(client *Client, provider, model string) *Converter {
	return &Converter{client: client, provider: provider, model: model}
}

// Name returns the registry key for the converter.
func (c *Converter) Name() string {
	return "convert-video"
}

// AcceptedExtensions lists the video containers handled by default.
func (c *Converter) AcceptedExtensions() []string {
	return []string{".mov", ".mp4", ".mkv", ".avi", ".webm"}
}

// OutputSuffix returns the extension appended to the input path.
func (c *Converter) OutputSuffix() string {
	return ".mp3"
}

// DependsOn returns nil: conversion starts chains.
func (c *Converter) DependsOn() []string {
	return nil
}

// Run transcodes req.InputPath into req.OutputPath.
func (c *Converter) Run(ctx context.Context, req parser.Request) (string, error) {
	if req.InputPath == "" || req.OutputPath == "" {
		return "", services.Wrap(services.ErrValidation, c.Name(), "run", "input and output paths are required", nil)
	}
	if err := c.client.ConvertToMP3(ctx, req.InputPath, req.OutputPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, c.Name(), "run", "audio conversion failed", err)
	}
	return req.OutputPath, nil
}

// EstimateCost prices the conversion by the transcription minutes the output
// will consume.
func (c *Converter) EstimateCost(path string) (pricing.Estimate, error) {
	return pricing.TranscriptionCostForFile(path, c.provider, c.model)
}

// HealthCheck verifies the ffmpeg binary is resolvable.
func (c *Converter) HealthCheck(ctx context.Context) parser.Health {
	return binaryHealth(c.Name(), c.client)
}
