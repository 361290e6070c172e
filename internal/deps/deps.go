// Package deps reports the availability of the external tools hopper's
// parser implementations shell out to. Registry health checks cover runtime
// readiness; this package feeds the startup snapshot and the validate
// command, where an operator wants the resolved command names too.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"hopper/internal/config"
)

// Requirement defines an external dependency hopper relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Defaults lists the binaries the built-in parser implementations execute,
// resolved from config. The summarizer talks HTTP and needs no binary, so it
// is represented by key presence in the dependency snapshot instead.
func Defaults(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Used by convert-video and extract-audio",
		},
		{
			Name:        "Whisper",
			Command:     cfg.WhisperBinary(),
			Description: "Used by transcribe",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
