// =============================================================================
// ASIN Tax Reconciler - Reconcile Command
// =============================================================================
//
// This file defines the 'reconcile' command, which runs one reconciliation
// of an order report against the base dataset.
//
// COMMAND USAGE:
//   reconciler reconcile --base <file> --report <file> [flags]
//
// FLAGS:
//   --base              : Base dataset (.csv/.txt/.tsv or .xlsx/.xlsm), updated in place
//   --report            : Delimited order report
//   --preview           : Preview of new records (default: <base>_new.csv)
//   --summary           : Key/value summary (default: <base>.summary)
//   --report-out        : Free-text change report (disabled when empty)
//   --sheet             : Worksheet of a workbook base (default: Sheet1)
//   --dry-run           : Write preview and summary, leave the base untouched
//   --host-automation   : Write the workbook through the spreadsheet host
//   --force-resave      : Resave the workbook through the host afterwards
//   --verify            : Check the last populated identifier row
//   --no-patch          : Skip the workbook container patch
//   --preview-delimiter : Preview delimiter for workbook bases
//
// OUTPUT:
//   "OK" on stdout when the run succeeds. Logs go to stderr.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/pipeline"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	basePath         string
	reportPath       string
	previewPath      string
	summaryPath      string
	changeReportPath string
	dryRun           bool
	noPatch          bool
)

// boundFlags maps configuration keys to the reconcile flags overriding them.
var boundFlags = map[string]string{
	"workbook.sheet":           "sheet",
	"workbook.host_automation": "host-automation",
	"workbook.force_resave":    "force-resave",
	"workbook.verify":          "verify",
	"output.preview_delimiter": "preview-delimiter",
}

// =============================================================================
// RECONCILE COMMAND DEFINITION
// =============================================================================

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Merge an order report into the base dataset",
	Long: `The reconcile command loads the base dataset and the order report,
merges the report into the base and writes:
  - the updated base, in place and in its original format
  - a preview holding only the records added by this run
  - a key/value summary of the run
  - optionally, a free-text change report

Nothing is written when either input fails to load.`,
	Args: cobra.NoArgs,
}

func init() {
	// Assigned here: runReconcile reaches reconcileCmd through initConfig.
	reconcileCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd)
	}
	rootCmd.AddCommand(reconcileCmd)

	f := reconcileCmd.Flags()
	f.StringVar(&basePath, "base", "", "Base dataset, updated in place")
	f.StringVar(&reportPath, "report", "", "Order report")
	f.StringVar(&previewPath, "preview", "", "Preview of new records (default: <base>_new.csv)")
	f.StringVar(&summaryPath, "summary", "", "Key/value summary (default: <base>.summary)")
	f.StringVar(&changeReportPath, "report-out", "", "Free-text change report")
	f.BoolVar(&dryRun, "dry-run", false, "Write preview and summary without updating the base")
	f.BoolVar(&noPatch, "no-patch", false, "Skip the workbook container patch")

	f.String("sheet", "Sheet1", "Worksheet of a workbook base")
	f.Bool("host-automation", false, "Write the workbook through the spreadsheet host (Windows)")
	f.Bool("force-resave", false, "Resave the workbook through the spreadsheet host")
	f.Bool("verify", false, "Verify the last populated identifier row after writing")
	f.String("preview-delimiter", ",", "Preview delimiter for workbook bases")

	_ = reconcileCmd.MarkFlagRequired("base")
	_ = reconcileCmd.MarkFlagRequired("report")
}

// =============================================================================
// MAIN FUNCTION
// =============================================================================

func runReconcile(cmd *cobra.Command) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if noPatch {
		disabled := false
		cfg.Workbook.PatchContainer = &disabled
	}

	result := pipeline.New(cfg, pipeline.Options{
		BasePath:         basePath,
		ReportPath:       reportPath,
		PreviewPath:      previewPath,
		SummaryPath:      summaryPath,
		ChangeReportPath: changeReportPath,
		DryRun:           dryRun,
	}, logger).Run(cmd.Context())

	if result.Error != nil {
		return result.Error
	}

	if wb := result.Workbook; wb != nil && len(wb.Warnings) > 0 {
		logger.Warn("workbook written with warnings", "tier", wb.Tier, "warnings", len(wb.Warnings), "log", wb.LogPath)
	}
	logger.Info("run complete",
		"preview", result.PreviewPath,
		"summary", result.SummaryPath,
		"duration", result.Duration)

	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}
