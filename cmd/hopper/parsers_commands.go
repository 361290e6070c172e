package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hopper/internal/api"
	"hopper/internal/catalog"
	"hopper/internal/chain"
)

func newParsersCommand(ctx *commandContext) *cobra.Command {
	parsersCmd := &cobra.Command{
		Use:   "parsers",
		Short: "Inspect and manage parser configurations",
	}

	parsersCmd.AddCommand(newParsersListCommand(ctx))
	parsersCmd.AddCommand(newParsersShowCommand(ctx))
	parsersCmd.AddCommand(newParsersEnableCommand(ctx, true))
	parsersCmd.AddCommand(newParsersEnableCommand(ctx, false))
	parsersCmd.AddCommand(newParsersSetCommand(ctx))
	parsersCmd.AddCommand(newParsersOrderCommand(ctx))
	parsersCmd.AddCommand(newParsersValidateCommand(ctx))
	parsersCmd.AddCommand(newParsersDeleteCommand(ctx))

	return parsersCmd
}

func newParsersListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parser configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(_ *catalog.Store, chains *chain.Manager) error {
				configs, err := chains.ListParserConfigs(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromParserConfigs(configs))
				}
				if len(configs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No parser configurations")
					return nil
				}
				rows := make([][]string, 0, len(configs))
				for _, cfg := range configs {
					rows = append(rows, []string{
						cfg.Name,
						cfg.Implementation,
						joinOrDash(cfg.Extensions),
						cfg.OutputExt,
						joinOrDash(cfg.DependsOn),
						yesNo(cfg.Enabled),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Name", "Implementation", "Extensions", "Output", "Depends On", "Enabled"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newParsersShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one parser configuration in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(_ *catalog.Store, chains *chain.Manager) error {
				cfg, err := chains.GetParserConfig(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromParserConfig(cfg))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Name:              %s\n", cfg.Name)
				fmt.Fprintf(out, "Implementation:    %s\n", cfg.Implementation)
				fmt.Fprintf(out, "Extensions:        %s\n", joinOrDash(cfg.Extensions))
				fmt.Fprintf(out, "Output suffix:     %s\n", cfg.OutputExt)
				fmt.Fprintf(out, "Depends on:        %s\n", joinOrDash(cfg.DependsOn))
				fmt.Fprintf(out, "Required tags:     %s\n", joinOrDash(cfg.RequiredTags))
				fmt.Fprintf(out, "Enabled:           %s\n", yesNo(cfg.Enabled))
				fmt.Fprintf(out, "User-selectable:   %s\n", yesNo(cfg.AllowUserSelection))
				fmt.Fprintf(out, "Derivative inputs: %s\n", yesNo(cfg.AllowDerivatives))
				if strings.TrimSpace(cfg.Settings) != "" {
					fmt.Fprintf(out, "Settings:          %s\n", cfg.Settings)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func newParsersEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use, short := "enable <name>", "Enable a parser configuration"
	if !enable {
		use, short = "disable <name>", "Disable a parser configuration"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(_ *catalog.Store, chains *chain.Manager) error {
				enabled := enable
				cfg, err := chains.UpdateParserConfig(cmd.Context(), args[0], chain.ConfigPatch{Enabled: &enabled})
				if err != nil {
					return err
				}
				state := "disabled"
				if cfg.Enabled {
					state = "enabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Parser %q is now %s\n", cfg.Name, state)
				return nil
			})
		},
	}
}

func newParsersSetCommand(ctx *commandContext) *cobra.Command {
	var (
		implementation string
		extensions     string
		outputExt      string
		dependsOn      string
		tags           string
		derivatives    bool
		selectable     bool
		settings       string
	)

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Update fields of a parser configuration",
		Long:  "Update fields of a parser configuration. Only flags that are explicitly set are applied; everything else keeps its stored value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := chain.ConfigPatch{}
			if cmd.Flags().Changed("implementation") {
				patch.Implementation = &implementation
			}
			if cmd.Flags().Changed("extensions") {
				values := splitCSV(extensions)
				patch.Extensions = &values
			}
			if cmd.Flags().Changed("output-ext") {
				patch.OutputExt = &outputExt
			}
			if cmd.Flags().Changed("depends-on") {
				values := splitCSV(dependsOn)
				patch.DependsOn = &values
			}
			if cmd.Flags().Changed("tags") {
				values := splitCSV(tags)
				patch.RequiredTags = &values
			}
			if cmd.Flags().Changed("allow-derivatives") {
				patch.AllowDerivatives = &derivatives
			}
			if cmd.Flags().Changed("allow-user-selection") {
				patch.AllowUserSelection = &selectable
			}
			if cmd.Flags().Changed("settings") {
				patch.Settings = &settings
			}

			return ctx.withEngine(cmd.Context(), func(_ *catalog.Store, chains *chain.Manager) error {
				cfg, err := chains.UpdateParserConfig(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated parser %q\n", cfg.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&implementation, "implementation", "", "Implementation name the config binds to")
	cmd.Flags().StringVar(&extensions, "extensions", "", "Comma-separated accepted input extensions")
	cmd.Flags().StringVar(&outputExt, "output-ext", "", "Suffix appended to the input path for outputs")
	cmd.Flags().StringVar(&dependsOn, "depends-on", "", "Comma-separated parser names that must complete first")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags a file must carry")
	cmd.Flags().BoolVar(&derivatives, "allow-derivatives", false, "Allow running on outputs of other parsers")
	cmd.Flags().BoolVar(&selectable, "allow-user-selection", false, "Allow manual selection of this parser")
	cmd.Flags().StringVar(&settings, "settings", "", "Implementation-specific settings as JSON")
	return cmd
}

func newParsersOrderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "order <name>",
		Short: "Show the dependency execution order for a parser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(_ *catalog.Store, chains *chain.Manager) error {
				order, err := chains.GetDependencyOrder(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for i, step := range order {
					fmt.Fprintf(out, "%d. %s\n", i+1, step)
				}
				return nil
			})
		},
	}
}

func newParsersValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the parser dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(_ *catalog.Store, chains *chain.Manager) error {
				report, err := chains.ValidateDependencies(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if report.Valid {
					fmt.Fprintln(out, "Dependency graph is valid")
					return nil
				}
				fmt.Fprintf(out, "Found %d problem(s):\n", len(report.Errors))
				for _, msg := range report.Errors {
					fmt.Fprintf(out, "  - %s\n", msg)
				}
				return fmt.Errorf("dependency validation failed")
			})
		},
	}
}

func newParsersDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a parser configuration (disabling is the usual path)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(_ *catalog.Store, chains *chain.Manager) error {
				deleted, err := chains.DeleteParserConfig(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("no parser configuration named %q", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted parser %q\n", args[0])
				return nil
			})
		},
	}
}
