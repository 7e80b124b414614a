// =============================================================================
// ASIN Tax Reconciler - Base Store
// =============================================================================
//
// A Store loads and persists the base dataset. The implementation is chosen
// once, from the file extension, when the store is opened:
//
//   EXTENSION            STORE           PERSISTENCE
//   .xlsx, .xlsm         WorkbookStore   workbook consistency layer
//   .xls                 (rejected)      legacy binary format unsupported
//   anything else        TextStore       delimited text, atomic replace
//
// =============================================================================

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/config"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/csvparser"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/csvwriter"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/workbook"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/xlsxparser"
)

// Store loads and saves a base dataset.
type Store interface {
	// Path returns the file backing the store.
	Path() string

	// Format returns the persistence format.
	Format() types.Format

	// Load reads and consolidates the base dataset.
	Load() (*types.Dataset, error)

	// Save replaces the stored dataset with ds. The workbook report is nil
	// for text stores.
	Save(ctx context.Context, ds *types.Dataset) (*workbook.Report, error)
}

// Options carries what the stores need besides the path.
type Options struct {
	Columns config.Columns
	Sheet   string

	// Layer persists workbook bases. Required for workbook stores.
	Layer *workbook.Layer
}

// Open returns the store for filePath.
func Open(filePath string, opts Options) (Store, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx", ".xlsm":
		if opts.Layer == nil {
			return nil, fmt.Errorf("workbook store for %s needs a consistency layer", filePath)
		}
		return &WorkbookStore{path: filePath, sheet: opts.Sheet, columns: opts.Columns, layer: opts.Layer}, nil
	case ".xls":
		return nil, fmt.Errorf("unsupported base format %q: save the workbook as .xlsx", filepath.Ext(filePath))
	default:
		return &TextStore{path: filePath, columns: opts.Columns}, nil
	}
}

// =============================================================================
// TEXT STORE
// =============================================================================

// TextStore keeps the base in a delimited text file.
type TextStore struct {
	path    string
	columns config.Columns
}

func (s *TextStore) Path() string         { return s.path }
func (s *TextStore) Format() types.Format { return types.FormatText }

func (s *TextStore) Load() (*types.Dataset, error) {
	return csvparser.LoadBase(s.path, s.columns)
}

func (s *TextStore) Save(_ context.Context, ds *types.Dataset) (*workbook.Report, error) {
	return nil, csvwriter.WriteDataset(s.path, ds)
}

// =============================================================================
// WORKBOOK STORE
// =============================================================================

// WorkbookStore keeps the base in one worksheet of an xlsx workbook.
type WorkbookStore struct {
	path    string
	sheet   string
	columns config.Columns
	layer   *workbook.Layer
}

func (s *WorkbookStore) Path() string         { return s.path }
func (s *WorkbookStore) Format() types.Format { return types.FormatWorkbook }

func (s *WorkbookStore) Load() (*types.Dataset, error) {
	return xlsxparser.LoadBase(s.path, s.sheet, s.columns)
}

func (s *WorkbookStore) Save(ctx context.Context, ds *types.Dataset) (*workbook.Report, error) {
	return s.layer.Commit(ctx, s.path, ds)
}
