package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hopper/internal/api"
	"hopper/internal/catalog"
	"hopper/internal/pricing"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect tracked files",
	}
	filesCmd.AddCommand(newFilesListCommand(ctx))
	filesCmd.AddCommand(newFilesShowCommand(ctx))
	return filesCmd
}

func newFilesListCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *catalog.Store) error {
				var kinds []catalog.FileKind
				if kindFlag != "" {
					kinds = append(kinds, catalog.FileKind(kindFlag))
				}
				files, err := store.ListFiles(cmd.Context(), kinds...)
				if err != nil {
					return err
				}
				if asJSON {
					out := make([]api.File, 0, len(files))
					for _, f := range files {
						out = append(out, api.FromFileRecord(f, nil))
					}
					return writeJSON(cmd, api.FileListResponse{Files: out})
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tracked files")
					return nil
				}
				rows := make([][]string, 0, len(files))
				for _, f := range files {
					rows = append(rows, []string{
						strconv.FormatInt(f.ID, 10),
						f.Path,
						string(f.Kind),
						humanize.Bytes(uint64(f.SizeBytes)),
						f.UpdatedAt.Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Path", "Kind", "Size", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "Filter by file kind (original or derivative)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newFilesShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <file-id>",
		Short: "Show a file with its tags, parse history, and prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid file id %q", args[0])
			}
			return ctx.withStore(cmd.Context(), func(store *catalog.Store) error {
				detail, err := api.NewCatalogService(store).DescribeFile(cmd.Context(), id)
				if err != nil {
					return err
				}
				if detail == nil {
					return fmt.Errorf("no file with id %d", id)
				}
				if asJSON {
					return writeJSON(cmd, detail)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Path:  %s\n", detail.File.Path)
				fmt.Fprintf(out, "Kind:  %s\n", detail.File.Kind)
				fmt.Fprintf(out, "Tags:  %s\n", joinOrDash(detail.File.Tags))
				if len(detail.Parses) > 0 {
					rows := make([][]string, 0, len(detail.Parses))
					for _, p := range detail.Parses {
						rows = append(rows, []string{p.Parser, statusLabel(p.Status), p.OutputPath, p.ErrorMessage})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Parser", "Status", "Output", "Error"},
						rows,
						nil,
					))
				}
				if detail.Prediction != nil {
					fmt.Fprintf(out, "Predicted steps: %d (estimated %s)\n",
						len(detail.Prediction.Chain), pricing.FormatCost(detail.Prediction.TotalCost))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}
