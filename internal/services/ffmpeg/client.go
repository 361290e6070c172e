package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"hopper/internal/parser"
)

// Command is the default ffmpeg binary name, resolved through PATH.
const Command = "ffmpeg"

// Client shells out to ffmpeg for audio transcoding and extraction.
type Client struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewClient creates an ffmpeg client. An empty binary falls back to the
// default PATH lookup name.
func NewClient(binary string) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = Command
	}
	return &Client{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	c.commandRunner = runner
}

// Binary returns the configured ffmpeg binary name.
func (c *Client) Binary() string {
	return c.binary
}

// ConvertToMP3 transcodes the audio stream of source into a mono 16kHz MP3
// at dest. Video, subtitle, and data streams are dropped.
func (c *Client) ConvertToMP3(ctx context.Context, source, dest string) error {
	return c.run(ctx, buildConvertArgs(source, dest)...)
}

// ExtractWAV decodes the audio stream of source into a mono 16kHz WAV at
// dest, the layout transcription backends expect.
func (c *Client) ExtractWAV(ctx context.Context, source, dest string) error {
	return c.run(ctx, buildExtractArgs(source, dest)...)
}

func (c *Client) run(ctx context.Context, args ...string) error {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, c.binary, args...)
	}
	cmd := exec.CommandContext(ctx, c.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func buildConvertArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-q:a", "4",
		dest,
	}
}

func buildExtractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

func binaryHealth(name string, client *Client) parser.Health {
	if client == nil {
		return parser.Unhealthy(name, "ffmpeg client unavailable")
	}
	if _, err := exec.LookPath(client.Binary()); err != nil {
		return parser.Unhealthy(name, fmt.Sprintf("ffmpeg binary %q not found", client.Binary()))
	}
	return parser.Healthy(name)
}
