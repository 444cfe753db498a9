package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/liamcoop/mbsrules/catalog"
	"github.com/liamcoop/mbsrules/internal/logger"
	"github.com/liamcoop/mbsrules/rules"
	"github.com/spf13/cobra"
)

// ErrSelectionBlocked is returned by validate --strict when conflicts are found.
var ErrSelectionBlocked = errors.New("selection blocked by mutually exclusive codes")

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "MBS billing code rules",
		Long: `mbsrules prepares MBS catalogs and runs the billing rules offline.

It provides:
- normalize: turn raw catalog data or an MBS schedule export into a clean catalog
- import: normalize a catalog and write it to the PostgreSQL catalog store
- evaluate: score a batch of candidate codes
- validate: check a selection for mutually exclusive codes
- conditions: check the eligibility conditions of a selection`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries command output; logs go to stderr.
			logger.SetOutput(cmd.ErrOrStderr())
			return logger.Configure(logLevel, 1)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		normalizeCmd(),
		importCmd(),
		evaluateCmd(),
		validateCmd(),
		conditionsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

func normalizeCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "normalize <input|->",
		Short: "Normalize raw catalog data into a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			entries, issues, err := normalizeInput(cmd, format, data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}
			if err := writeJSON(out, entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d entries, %d issues\n", len(entries), len(issues))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "catalog", "Input format: catalog or mbs")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <candidates.json|->",
		Short: "Evaluate a batch of candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			var candidates []rules.RuleCandidate
			if err := json.Unmarshal(data, &candidates); err != nil {
				return fmt.Errorf("failed to parse candidates: %w", err)
			}

			return writeJSON(cmd.OutOrStdout(), rules.Evaluate(candidates))
		},
	}
}

// selectionFlags are shared by validate and conditions.
type selectionFlags struct {
	catalogPaths []string
	codes        []string
	contextFile  string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.catalogPaths, "catalog", []string{"data/mbs-catalog.json"}, "Catalog files, first existing one is used")
	cmd.Flags().StringSliceVar(&f.codes, "codes", nil, "Selected codes (comma-separated)")
	cmd.Flags().StringVar(&f.contextFile, "context", "", "JSON file with the consult context")
}

func (f *selectionFlags) provider() catalog.Provider {
	cfg := catalog.DefaultCacheConfig()
	cfg.Logger = logger.Logger
	return catalog.NewCache(catalog.NewFileLoader(f.catalogPaths...), cfg)
}

func (f *selectionFlags) selectionContext() (rules.SelectionContext, error) {
	var sc rules.SelectionContext
	if f.contextFile == "" {
		return sc, nil
	}
	data, err := os.ReadFile(f.contextFile)
	if err != nil {
		return sc, fmt.Errorf("failed to read context: %w", err)
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("failed to parse context: %w", err)
	}
	return sc, nil
}

func validateCmd() *cobra.Command {
	var (
		flags  selectionFlags
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a selection for mutually exclusive codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := flags.selectionContext()
			if err != nil {
				return err
			}

			validator := rules.NewValidator(flags.provider())
			result := validator.ValidateSelection(context.Background(), flags.codes, sc)
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if strict && result.Blocked {
				return fmt.Errorf("%w: %s", ErrSelectionBlocked, strings.Join(result.Warnings, "; "))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the selection is blocked")
	return cmd
}

func conditionsCmd() *cobra.Command {
	var flags selectionFlags

	cmd := &cobra.Command{
		Use:   "conditions",
		Short: "Check the eligibility conditions of a selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := flags.selectionContext()
			if err != nil {
				return err
			}

			checker, err := rules.NewConditionChecker(flags.provider())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), checker.Check(context.Background(), flags.codes, sc))
		},
	}

	flags.register(cmd)
	return cmd
}

// normalizeInput decodes raw catalog or MBS data and normalizes it, printing
// each issue to stderr.
func normalizeInput(cmd *cobra.Command, format string, data []byte) ([]catalog.Entry, []catalog.Issue, error) {
	var raw []catalog.Entry
	switch format {
	case "catalog":
		var err error
		if raw, err = catalog.DecodeEntries(data); err != nil {
			return nil, nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
	case "mbs":
		var items []catalog.MBSItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, nil, fmt.Errorf("failed to parse MBS items: %w", err)
		}
		raw = catalog.FromMBSItems(items)
	default:
		return nil, nil, fmt.Errorf("unknown format %q (use catalog or mbs)", format)
	}

	entries, issues := catalog.Normalize(raw)
	for _, issue := range issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", issue)
	}
	return entries, issues, nil
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
