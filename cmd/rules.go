// Package cmd provides command-line interface commands for PHIGuard.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phiguard/bootstrap"
	"phiguard/core"
	"phiguard/detect"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for rules commands
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

const defaultTimeout = 30 * time.Second

// NewRulesCmd creates the root rules command with all subcommands.
func NewRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage detection rules",
		Long: `Manage live detection rules: list, inspect, import, enable, disable
and delete. Changes are written through to the configured store and take
effect on the next processed event.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rulesCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	rulesCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rulesCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	rulesCmd.AddCommand(newListCmd())
	rulesCmd.AddCommand(newShowCmd())
	rulesCmd.AddCommand(newImportCmd())
	rulesCmd.AddCommand(newEnableCmd())
	rulesCmd.AddCommand(newDisableCmd())
	rulesCmd.AddCommand(newDeleteCmd())

	return rulesCmd
}

// initRuleStore opens the configured store and loads the active rule set.
// The returned cleanup closes the store.
func initRuleStore(ctx context.Context) (*detect.RuleStore, func(), error) {
	// CLI runs keep the log quiet unless something goes wrong.
	level := "warn"
	if quiet {
		level = "error"
	}
	_, sugar, err := bootstrap.InitLogger(level)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := bootstrap.InitConfig(zap.NewNop().Sugar())
	if err != nil {
		return nil, nil, err
	}

	store, err := bootstrap.InitStore(ctx, cfg, sugar)
	if err != nil {
		return nil, nil, err
	}

	rules := detect.NewRuleStore(store, sugar)
	if err := rules.Load(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			sugar.Warnw("Failed to close store", "error", err)
		}
	}
	return rules, cleanup, nil
}

// newListCmd creates the 'list' subcommand
func newListCmd() *cobra.Command {
	var showDisabled bool
	var typeFilter string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List detection rules",
		Long:    "Display a table of detection rules with their type, severity and state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			rules, cleanup, err := initRuleStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var filters *core.RuleFilters
			if !showDisabled || typeFilter != "" {
				filters = &core.RuleFilters{Type: core.AnomalyType(typeFilter)}
				if !showDisabled {
					enabled := true
					filters.Enabled = &enabled
				}
			}

			list := rules.List(filters)
			if outputJSON {
				return outputAsJSON(list)
			}
			renderRulesTable(list)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showDisabled, "all", false, "Include disabled rules")
	cmd.Flags().StringVar(&typeFilter, "type", "", "Filter by anomaly type")

	return cmd
}

// newShowCmd creates the 'show' subcommand
func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show detailed rule information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			rules, cleanup, err := initRuleStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rule, ok := rules.Get(args[0])
			if !ok {
				return fmt.Errorf("rule %s not found", args[0])
			}

			if outputJSON {
				return outputAsJSON(rule)
			}
			renderRuleDetails(rule)
			return nil
		},
	}
}

// newImportCmd creates the 'import' subcommand
func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import rules from a YAML file",
		Long:  "Import detection rules from a YAML file. Invalid entries are skipped; valid ones are stored and activated.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			rules, cleanup, err := initRuleStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			_, sugar, err := bootstrap.InitLogger("warn")
			if err != nil {
				return err
			}
			count, err := detect.ImportRules(ctx, rules, args[0], sugar)
			if err != nil {
				return fmt.Errorf("failed to import rules: %w", err)
			}

			if !quiet {
				successColor.Printf("Imported %d rule(s) from %s\n", count, args[0])
			}
			return nil
		},
	}
}

// newEnableCmd creates the 'enable' subcommand
func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <rule-id>",
		Short: "Enable a rule",
		Args:  cobra.ExactArgs(1),
		RunE:  toggleRunE(true),
	}
}

// newDisableCmd creates the 'disable' subcommand
func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Disable a rule",
		Args:  cobra.ExactArgs(1),
		RunE:  toggleRunE(false),
	}
}

func toggleRunE(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()

		rules, cleanup, err := initRuleStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := rules.Toggle(ctx, args[0], enabled); err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}

		if !quiet {
			state := "disabled"
			if enabled {
				state = "enabled"
			}
			successColor.Printf("Rule %s %s\n", args[0], state)
		}
		return nil
	}
}

// newDeleteCmd creates the 'delete' subcommand
func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <rule-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				errorColor.Fprintln(cmd.ErrOrStderr(), "Refusing to delete without --force")
				return fmt.Errorf("deletion requires --force")
			}

			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			rules, cleanup, err := initRuleStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := rules.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}

			if !quiet {
				successColor.Printf("Rule %s deleted\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm deletion")

	return cmd
}
