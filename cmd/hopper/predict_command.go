package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hopper/internal/api"
	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/config"
	"hopper/internal/pricing"
)

func newPredictCommand(ctx *commandContext) *cobra.Command {
	var (
		tags       string
		completed  string
		derivative bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "predict <path>",
		Short: "Predict the processing chain for a file",
		Long:  "Predict the full future sequence of steps for a file without running anything. Output paths are virtual until their steps execute.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return ctx.withEngine(cmd.Context(), func(_ *catalog.Store, chains *chain.Manager) error {
				steps, err := chains.PredictProcessingChainFrom(
					cmd.Context(), path, splitCSV(tags), splitCSV(completed), derivative)
				if err != nil {
					return err
				}
				if asJSON {
					out := make([]api.ProcessingStep, 0, len(steps))
					for _, step := range steps {
						out = append(out, api.FromProcessingStep(step))
					}
					return writeJSON(cmd, out)
				}
				if len(steps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No applicable steps for this file")
					return nil
				}
				rows := make([][]string, 0, len(steps))
				var total float64
				for i, step := range steps {
					total += step.EstimatedCost
					rows = append(rows, []string{
						fmt.Sprintf("%d", i+1),
						step.Parser,
						step.InputPath,
						step.OutputPath,
						pricing.FormatCost(step.EstimatedCost),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"#", "Parser", "Input", "Output", "Est. Cost"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
				))
				fmt.Fprintf(cmd.OutOrStdout(), "Estimated total: %s\n", pricing.FormatCost(total))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags the file carries")
	cmd.Flags().StringVar(&completed, "completed", "", "Comma-separated parser names already completed")
	cmd.Flags().BoolVar(&derivative, "derivative", false, "Treat the file as the output of a prior step")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
