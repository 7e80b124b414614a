// =============================================================================
// ASIN Tax Reconciler - Pipeline Module
// =============================================================================
//
// This module orchestrates one reconciliation run, from loading the inputs
// to writing every artifact.
//
// PIPELINE:
//   1. Open the base store (text or workbook, chosen by extension)
//   2. Load the base dataset
//   3. Load the order report
//   4. Reconcile the report into a copy of the base
//   5. Persist the merged dataset (skipped on dry runs)
//   6. Write the preview of newly added records
//   7. Write the key/value summary
//   8. Write the free-text change report (optional)
//
// Steps 1-4 only read. Any failure there ends the run before a single file
// is written. A failure in step 5 leaves the base untouched because every
// writer replaces its destination atomically.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/config"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/csvparser"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/csvwriter"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/reconcile"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/store"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/workbook"
	"github.com/ginjaninja78/asin-tax-reconciler/pkg/utils"
)

// =============================================================================
// OPTIONS AND RESULT
// =============================================================================

// Options describes the files of one run.
type Options struct {
	// BasePath is the master dataset, updated in place.
	BasePath string

	// ReportPath is the delimited order report.
	ReportPath string

	// PreviewPath receives the newly added records. Default: base stem +
	// output.preview_suffix.
	PreviewPath string

	// SummaryPath receives the key/value summary. Default: base stem +
	// output.summary_suffix.
	SummaryPath string

	// ChangeReportPath receives the free-text report. Empty disables it.
	ChangeReportPath string

	// DryRun computes every artifact except the updated base.
	DryRun bool

	// Refresher overrides the host automation chosen from the config.
	Refresher workbook.Refresher
}

// Result represents the outcome of one run.
type Result struct {
	// RunID identifies the run in the summary and the change report.
	RunID string

	// Success indicates whether every required step completed.
	Success bool

	// Error contains the error if the run failed.
	Error error

	// Format is the persistence format of the base.
	Format types.Format

	// PreviewPath, SummaryPath and ChangeReportPath are the artifacts
	// written. They are empty when the run failed before writing them.
	PreviewPath      string
	SummaryPath      string
	ChangeReportPath string

	// Changes describes the merge.
	Changes *types.ChangeSet

	// Workbook is the consistency layer report for workbook bases.
	Workbook *workbook.Report

	// DryRun is true when the base was left untouched on purpose.
	DryRun bool

	// StartedAt and Duration time the run.
	StartedAt time.Time
	Duration  time.Duration
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs a reconciliation.
type Pipeline struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger
}

// New creates a Pipeline. Missing artifact paths are derived from the base
// path and the output configuration.
//
// PARAMETERS:
//   - cfg:    The resolved configuration.
//   - opts:   The files of this run.
//   - logger: Destination of progress logs; slog.Default() when nil.
func New(cfg *config.Config, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PreviewPath == "" {
		opts.PreviewPath = utils.DerivedPath(opts.BasePath, cfg.Output.PreviewSuffix)
	}
	if opts.SummaryPath == "" {
		opts.SummaryPath = utils.DerivedPath(opts.BasePath, cfg.Output.SummarySuffix)
	}
	return &Pipeline{cfg: cfg, opts: opts, logger: logger}
}

// Run executes the pipeline.
//
// RETURNS:
//   - A Result describing the outcome. Result.Error is set on failure.
func (p *Pipeline) Run(ctx context.Context) Result {
	result := Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    p.opts.DryRun,
	}
	logger := p.logger.With("run", result.RunID)

	fail := func(err error) Result {
		result.Error = err
		result.Duration = time.Since(result.StartedAt)
		return result
	}

	// =========================================================================
	// STEP 1: OPEN THE BASE STORE
	// =========================================================================

	st, err := store.Open(p.opts.BasePath, store.Options{
		Columns: p.cfg.Columns,
		Sheet:   p.cfg.Workbook.Sheet,
		Layer:   workbook.NewLayer(workbook.OptionsFrom(p.cfg.Workbook), p.refresher(logger), nil, logger),
	})
	if err != nil {
		return fail(err)
	}
	result.Format = st.Format()

	// =========================================================================
	// STEP 2: LOAD BASE
	// =========================================================================

	base, err := st.Load()
	if err != nil {
		return fail(err)
	}

	logger.Info("loaded base",
		"path", p.opts.BasePath,
		"format", st.Format(),
		"records", base.Len(),
		"rows", base.RawRows,
		"duplicate_rows", len(base.Duplicates))

	// =========================================================================
	// STEP 3: LOAD REPORT
	// =========================================================================

	report, err := csvparser.LoadReport(p.opts.ReportPath, p.cfg.Columns)
	if err != nil {
		return fail(err)
	}

	logger.Info("loaded report",
		"path", p.opts.ReportPath,
		"delimiter", csvparser.DelimiterName(report.Delimiter),
		"rows", len(report.Observations))

	// =========================================================================
	// STEP 4: RECONCILE
	// =========================================================================

	merged, changes := reconcile.Reconcile(base, report.Observations)
	result.Changes = changes

	logger.Info("reconciled",
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"unchanged", changes.Unchanged,
		"cancelled_rows", changes.Stats.CancelledRows)

	// =========================================================================
	// STEP 5: PERSIST
	// =========================================================================

	if p.opts.DryRun {
		logger.Info("dry run, base left untouched")
	} else {
		wb, err := st.Save(ctx, merged)
		if err != nil {
			return fail(fmt.Errorf("failed to save base: %w", err))
		}
		result.Workbook = wb
		logger.Info("saved base", "path", p.opts.BasePath, "size", merged.Len())
	}

	// =========================================================================
	// STEP 6: PREVIEW
	// =========================================================================

	var previewDelimiter rune
	if merged.Layout.Format == types.FormatWorkbook {
		if previewDelimiter, err = p.cfg.Output.PreviewRune(); err != nil {
			return fail(err)
		}
	}
	replaced := utils.FileExists(p.opts.PreviewPath)
	if err := csvwriter.WritePreview(p.opts.PreviewPath, merged, changes.FirstNewIndex, previewDelimiter); err != nil {
		return fail(err)
	}
	logger.Debug("wrote preview", "path", p.opts.PreviewPath, "records", len(changes.Added), "replaced", replaced)
	result.PreviewPath = p.opts.PreviewPath

	// =========================================================================
	// STEP 7: SUMMARY
	// =========================================================================

	result.Success = true
	if err := utils.WriteProperties(p.opts.SummaryPath, SummaryProperties(result)); err != nil {
		result.Success = false
		return fail(err)
	}
	result.SummaryPath = p.opts.SummaryPath

	// =========================================================================
	// STEP 8: CHANGE REPORT
	// =========================================================================

	if p.opts.ChangeReportPath != "" {
		meta := ReportMeta{
			RunID:      result.RunID,
			Generated:  result.StartedAt,
			BasePath:   p.opts.BasePath,
			ReportPath: p.opts.ReportPath,
			DryRun:     p.opts.DryRun,
		}
		if err := WriteChangeReport(p.opts.ChangeReportPath, meta, changes); err != nil {
			result.Success = false
			return fail(err)
		}
		result.ChangeReportPath = p.opts.ChangeReportPath
	}

	result.Duration = time.Since(result.StartedAt)
	logger.Debug("run complete", "duration", result.Duration)
	return result
}

// refresher picks the host automation for this run. Automation is only
// wired when a tier that uses it is enabled.
func (p *Pipeline) refresher(logger *slog.Logger) workbook.Refresher {
	if p.opts.Refresher != nil {
		return p.opts.Refresher
	}
	wc := p.cfg.Workbook
	if !wc.HostAutomation && !wc.ForceResave {
		return workbook.Disabled{}
	}
	return workbook.NewHostRefresher(wc.Shell, wc.Timeout, wc.LogDir, logger)
}
