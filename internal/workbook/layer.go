// =============================================================================
// ASIN Tax Reconciler - Workbook Consistency Layer
// =============================================================================
//
// The layer persists a merged dataset into its workbook and then tries to
// make the host application show consistent values when it next opens the
// file. Tiers run in order and each can be toggled on its own:
//
//   TIER  STEP                 ON FAILURE
//   1     host automation      warning, fall through to tier 2
//   2     model write + patch  model write failure is fatal; patch failure
//                              keeps the unpatched bytes with a warning
//   3     forced resave        warning
//   4     verification         warning plus diagnostic log path
//
// Whatever happens in tiers 1, 3 and 4, the file on disk holds the merged
// dataset when Commit returns without error.
//
// =============================================================================

package workbook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/config"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/xlsxwriter"
	"github.com/ginjaninja78/asin-tax-reconciler/pkg/utils"
)

// Tier names the step that wrote the data.
type Tier string

const (
	TierHost  Tier = "host"
	TierModel Tier = "model"
)

// Options selects the tiers to run.
type Options struct {
	HostAutomation bool
	PatchContainer bool
	ForceResave    bool
	Verify         bool
	LogDir         string
}

// OptionsFrom maps the workbook configuration to layer options.
func OptionsFrom(cfg config.WorkbookConfig) Options {
	return Options{
		HostAutomation: cfg.HostAutomation,
		PatchContainer: cfg.PatchEnabled(),
		ForceResave:    cfg.ForceResave,
		Verify:         cfg.Verify,
		LogDir:         cfg.LogDir,
	}
}

// Report summarizes one Commit.
type Report struct {
	Tier     Tier
	Patched  bool
	Resaved  bool
	Verified bool
	Warnings []string

	// LogPath is the diagnostic log of the last failing or mismatching
	// step, if any.
	LogPath string
}

func (r *Report) warn(logger *slog.Logger, msg string, args ...any) {
	text := fmt.Sprintf(msg, args...)
	r.Warnings = append(r.Warnings, text)
	logger.Warn(text, "log", r.LogPath)
}

// Layer runs the consistency tiers.
type Layer struct {
	refresher   Refresher
	invalidator CacheInvalidator
	opts        Options
	logger      *slog.Logger
}

// NewLayer creates a layer. A nil refresher means Disabled and a nil
// invalidator means a default ContainerPatcher.
func NewLayer(opts Options, refresher Refresher, invalidator CacheInvalidator, logger *slog.Logger) *Layer {
	if refresher == nil {
		refresher = Disabled{}
	}
	if invalidator == nil {
		invalidator = &ContainerPatcher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{refresher: refresher, invalidator: invalidator, opts: opts, logger: logger}
}

// Commit persists ds into the workbook at filePath.
//
// PARAMETERS:
//   - ctx:      Bounds every automation subprocess.
//   - filePath: The base workbook, rewritten in place.
//   - ds:       The merged dataset with its workbook layout.
//
// RETURNS:
//   - The report of the tiers that ran.
//   - An error only when the model write cannot produce or store the file.
func (l *Layer) Commit(ctx context.Context, filePath string, ds *types.Dataset) (*Report, error) {
	report := &Report{}
	layout := ds.Layout

	// Only the identifier and tax-status columns are rewritten. Other
	// columns keep their rows, so they drift when the row count shrinks.
	if layout.Width() > 2 && ds.Len()+1 < layout.SheetRows {
		report.warn(l.logger, "sheet %q has %d columns and %d fewer rows; columns other than identifier and tax status are not realigned",
			layout.Sheet, layout.Width(), layout.SheetRows-ds.Len()-1)
	}

	// =========================================================================
	// TIER 1: HOST AUTOMATION
	// =========================================================================

	if l.opts.HostAutomation {
		if err := l.refresher.Available(); err != nil {
			report.warn(l.logger, "host automation skipped: %v", err)
		} else {
			out, err := l.refresher.Rewrite(ctx, RewriteRequest{
				Path:       filePath,
				Sheet:      layout.Sheet,
				KeyColumn:  layout.KeyColumn,
				FlagColumn: layout.FlagColumn,
				ClearRows:  layout.SheetRows,
				Records:    ds.Records(),
			})
			if err != nil {
				report.LogPath = out.LogPath
				report.warn(l.logger, "host automation failed, using model write: %v", err)
			} else {
				report.Tier = TierHost
			}
		}
	}

	// =========================================================================
	// TIER 2: MODEL WRITE + CONTAINER PATCH
	// =========================================================================

	if report.Tier != TierHost {
		data, err := xlsxwriter.Render(filePath, ds)
		if err != nil {
			return nil, err
		}

		if l.opts.PatchContainer {
			patched, err := l.invalidator.Invalidate(data)
			if err != nil {
				report.warn(l.logger, "container patch incomplete: %v", err)
			}
			report.Patched = err == nil
			data = patched
		}

		if err := utils.WriteAtomic(filePath, data); err != nil {
			return nil, fmt.Errorf("failed to write workbook: %w", err)
		}
		report.Tier = TierModel
	}

	// =========================================================================
	// TIER 3: FORCED RESAVE
	// =========================================================================

	if l.opts.ForceResave {
		if err := l.refresher.Available(); err != nil {
			report.warn(l.logger, "forced resave skipped: %v", err)
		} else if out, err := l.refresher.Resave(ctx, filePath); err != nil {
			report.LogPath = out.LogPath
			report.warn(l.logger, "forced resave failed: %v", err)
		} else {
			report.Resaved = true
		}
	}

	// =========================================================================
	// TIER 4: VERIFICATION
	// =========================================================================

	if l.opts.Verify {
		l.verify(ctx, filePath, ds, report)
	}

	l.logger.Debug("workbook committed",
		"tier", report.Tier,
		"patched", report.Patched,
		"resaved", report.Resaved,
		"verified", report.Verified,
		"warnings", len(report.Warnings))

	return report, nil
}

// verify compares the last populated identifier row with the dataset size.
// The host answers when it is available, the object model otherwise.
func (l *Layer) verify(ctx context.Context, filePath string, ds *types.Dataset, report *Report) {
	layout := ds.Layout
	expected := ds.Len() + 1

	var (
		got    int
		out    Outcome
		err    error
		source = "host"
	)
	if l.refresher.Available() == nil {
		got, out, err = l.refresher.LastRow(ctx, filePath, layout.Sheet, layout.KeyColumn)
	} else {
		source = "model"
		got, err = LastPopulatedRow(filePath, layout.Sheet, layout.KeyColumn)
	}

	if err != nil {
		report.LogPath = out.LogPath
		report.warn(l.logger, "verification failed: %v", err)
		return
	}

	report.Verified = true
	if got == expected {
		return
	}

	if out.LogPath == "" {
		out.LogPath = l.writeDiagnostic(filePath, layout.Sheet, source, expected, got)
	}
	report.LogPath = out.LogPath
	report.warn(l.logger, "verification mismatch: last populated row %d, expected %d", got, expected)
}

// writeDiagnostic stores the details of a verification mismatch and
// returns the log path, or "" when it cannot be written.
func (l *Layer) writeDiagnostic(filePath, sheet, source string, expected, got int) string {
	logPath := utils.StagingPath(l.opts.LogDir, "reconciler-verify", ".log")
	body := utils.EncodeProperties([]utils.Property{
		{Key: "workbook", Value: filePath},
		{Key: "sheet", Value: sheet},
		{Key: "source", Value: source},
		{Key: "expected_last_row", Value: fmt.Sprint(expected)},
		{Key: "actual_last_row", Value: fmt.Sprint(got)},
	})
	if err := utils.WriteAtomic(logPath, body); err != nil {
		l.logger.Debug("failed to write diagnostic log", "error", err)
		return ""
	}
	return logPath
}

// LastPopulatedRow returns the 1-based index of the last row whose 0-based
// column holds a non-blank value, or 0 when the column is empty.
func LastPopulatedRow(filePath, sheet string, column int) (int, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	cols, err := f.GetCols(sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if column < 0 || column >= len(cols) {
		return 0, nil
	}

	cells := cols[column]
	for i := len(cells) - 1; i >= 0; i-- {
		if strings.TrimSpace(cells[i]) != "" {
			return i + 1, nil
		}
	}
	return 0, nil
}
