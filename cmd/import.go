package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/leadvault/chatimport-cli/internal/extract"
	"github.com/leadvault/chatimport-cli/internal/importer"
	"github.com/leadvault/chatimport-cli/internal/model"
)

var (
	importOrgID      string
	importDryRun     bool
	importLimit      int
	importInput      string
	importOutput     string
	importUseLLM     bool
	importNoLLM      bool
	importSkipDups   bool
	importNoSkipDups bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import chat history for an organization",
	Long:  "Extracts contacts and conversations, classifies each client's funnel status, and persists them transactionally. Cancelling with Ctrl-C pauses the run; contacts already in flight finish and counters are preserved.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importOrgID == "" {
			return eris.New("--organization-id is required")
		}
		if importInput == "" {
			return eris.New("--input is required (path to an exported chat workbook)")
		}
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		ex, err := extract.NewSpreadsheetExtractor(importInput)
		if err != nil {
			return err
		}

		opts := importer.Options{
			OrganizationID: importOrgID,
			DryRun:         importDryRun,
			Limit:          importLimit,
			Concurrency:    cfg.Import.Concurrency,
		}
		if cmd.Flags().Changed("use-llm") || cmd.Flags().Changed("no-llm") {
			useLLM := importUseLLM && !importNoLLM
			opts.UseLLM = &useLLM
		}
		effectiveUseLLM := cfg.Import.UseLLM
		if opts.UseLLM != nil {
			effectiveUseLLM = *opts.UseLLM
		}
		if err := cfg.ValidateLLMMode(effectiveUseLLM); err != nil {
			return err
		}
		if cmd.Flags().Changed("skip-duplicates") || cmd.Flags().Changed("no-skip-duplicates") {
			skip := importSkipDups && !importNoSkipDups
			opts.SkipDuplicates = &skip
		}

		result, err := initImporter(st, ex, initCache(ctx)).Run(ctx, opts)
		if err != nil {
			if result != nil {
				writeRunResult(result)
			}
			return err
		}

		writeRunResult(result)

		// Per-contact failures and a pause are not process failures: the
		// run result carries them and the exit code stays zero.
		return nil
	},
}

func writeRunResult(result *model.ImportRunResult) {
	var err error
	switch importOutput {
	case "yaml":
		err = yaml.NewEncoder(os.Stdout).Encode(result)
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(result)
	}
	if err != nil {
		zap.L().Error("encoding run result failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "run %s finished with status %s\n", result.RunID, result.Status)
	}
}

func init() {
	importCmd.Flags().StringVar(&importOrgID, "organization-id", "", "organization to import into (required)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "run the full pipeline without writing clients")
	importCmd.Flags().IntVar(&importLimit, "limit", 0, "max contacts to import (0 = all)")
	importCmd.Flags().StringVar(&importInput, "input", "", "exported chat workbook (.xlsx)")
	importCmd.Flags().StringVar(&importOutput, "output", "json", "run report format: json or yaml")
	importCmd.Flags().BoolVar(&importUseLLM, "use-llm", false, "classify statuses with the LLM")
	importCmd.Flags().BoolVar(&importNoLLM, "no-llm", false, "force heuristic classification")
	importCmd.Flags().BoolVar(&importSkipDups, "skip-duplicates", false, "skip contacts matching existing clients")
	importCmd.Flags().BoolVar(&importNoSkipDups, "no-skip-duplicates", false, "re-import contacts matching existing clients")
	importCmd.MarkFlagsMutuallyExclusive("use-llm", "no-llm")
	importCmd.MarkFlagsMutuallyExclusive("skip-duplicates", "no-skip-duplicates")
	rootCmd.AddCommand(importCmd)
}
