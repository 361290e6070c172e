package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"hopper/internal/api"
	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/pricing"
)

func newPredictionsCommand(ctx *commandContext) *cobra.Command {
	predictionsCmd := &cobra.Command{
		Use:   "predictions",
		Short: "Inspect predicted processing chains",
	}
	predictionsCmd.AddCommand(newPredictionsListCommand(ctx))
	predictionsCmd.AddCommand(newPredictionsRefreshCommand(ctx))
	return predictionsCmd
}

func newPredictionsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var includeInvalid bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *catalog.Store) error {
				predictions, err := store.ListPredictedJobs(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.PredictionListResponse{Predictions: api.FromPredictedJobs(predictions)})
				}
				rows := make([][]string, 0, len(predictions))
				for _, p := range predictions {
					if !p.Valid && !includeInvalid {
						continue
					}
					names := make([]string, 0, len(p.Chain))
					for _, step := range p.Chain {
						names = append(names, step.Parser)
					}
					rows = append(rows, []string{
						strconv.FormatInt(p.FileID, 10),
						strings.Join(names, " -> "),
						pricing.FormatCost(p.TotalCost()),
						yesNo(p.Valid),
					})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No predictions")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"File", "Predicted Chain", "Est. Cost", "Valid"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	cmd.Flags().BoolVar(&includeInvalid, "all", false, "Include invalidated predictions")
	return cmd
}

func newPredictionsRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Recompute predictions for every tracked file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(_ *catalog.Store, chains *chain.Manager) error {
				jobs, err := chains.RecomputeAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recomputed predictions: %d file(s) with pending work\n", len(jobs))
				return nil
			})
		},
	}
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var steps string

	cmd := &cobra.Command{
		Use:   "approve <file-id>",
		Short: "Approve a file's predicted chain and enqueue its jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || fileID <= 0 {
				return fmt.Errorf("invalid file id %q", args[0])
			}
			return ctx.withStore(cmd.Context(), func(store *catalog.Store) error {
				result, err := api.ApprovePrediction(cmd.Context(), store, fileID, splitCSV(steps))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Enqueued %d job(s) for file %d\n", len(result.Enqueued), result.FileID)
				for _, job := range result.Enqueued {
					fmt.Fprintf(out, "  %s (%s)\n", job.Parser, statusLabel(job.Status))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&steps, "steps", "", "Comma-separated subset of predicted steps (default: whole chain)")
	return cmd
}

func newBatchCostCommand(ctx *commandContext) *cobra.Command {
	var selects []string

	cmd := &cobra.Command{
		Use:   "batch-cost",
		Short: "Sum predicted costs across selected steps of multiple files",
		Example: "  hopper batch-cost --select 1=transcribe,summarize --select 2=transcribe",
		RunE: func(cmd *cobra.Command, args []string) error {
			selections, err := parseSelections(selects)
			if err != nil {
				return err
			}
			if len(selections) == 0 {
				return fmt.Errorf("at least one --select is required")
			}
			return ctx.withEngine(cmd.Context(), func(_ *catalog.Store, chains *chain.Manager) error {
				total, err := chains.CalculateBatchCost(cmd.Context(), selections)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Estimated batch cost: %s\n", pricing.FormatCost(total))
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&selects, "select", nil, "Selection as <file-id>=<step>[,<step>...] (repeatable)")
	return cmd
}

// parseSelections converts --select values of the form "3=transcribe,summarize"
// into chain selections.
func parseSelections(values []string) ([]chain.Selection, error) {
	selections := make([]chain.Selection, 0, len(values))
	for _, value := range values {
		id, steps, found := strings.Cut(value, "=")
		if !found {
			return nil, fmt.Errorf("invalid selection %q: expected <file-id>=<steps>", value)
		}
		fileID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil || fileID <= 0 {
			return nil, fmt.Errorf("invalid file id in selection %q", value)
		}
		selections = append(selections, chain.Selection{
			FileID: fileID,
			Steps:  splitCSV(steps),
		})
	}
	return selections, nil
}
