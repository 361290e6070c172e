package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hopper/internal/config"
	"hopper/internal/pricing"
)

// text extensions priced as summarization input; everything else is treated
// as audio/video and priced as transcription.
var textExtensions = map[string]struct{}{
	".txt": {},
	".md":  {},
	".srt": {},
}

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "estimate <path>",
		Short: "Estimate the processing cost of a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("inspect %q: %w", path, err)
			}

			ext := strings.ToLower(filepath.Ext(path))
			_, isText := textExtensions[ext]

			var estimate pricing.Estimate
			var kind string
			if isText {
				kind = "summarization"
				estimate, err = pricing.SummarizationCostForFile(path, cfg.Summarization.Provider, cfg.Summarization.Model)
			} else {
				kind = "transcription"
				estimate, err = pricing.TranscriptionCostForFile(path, cfg.Transcription.Provider, cfg.Transcription.Model)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"path":            path,
					"kind":            kind,
					"sizeBytes":       info.Size(),
					"durationMinutes": estimate.DurationMinutes,
					"inputTokens":     estimate.InputTokens,
					"outputTokens":    estimate.OutputTokens,
					"cost":            estimate.Cost,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:     %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
			fmt.Fprintf(out, "Priced as: %s\n", kind)
			if estimate.DurationMinutes > 0 {
				fmt.Fprintf(out, "Duration: %s (size heuristic, not decoded)\n", pricing.FormatMinutes(estimate.DurationMinutes))
			}
			if estimate.InputTokens > 0 {
				fmt.Fprintf(out, "Tokens:   %s\n", pricing.FormatTokens(estimate.InputTokens, estimate.OutputTokens))
			}
			fmt.Fprintf(out, "Cost:     %s\n", pricing.FormatCost(estimate.Cost))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}
