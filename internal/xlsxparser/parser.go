// =============================================================================
// ASIN Tax Reconciler - Workbook Loader
// =============================================================================
//
// This module reads the base dataset when it is stored as an xlsx workbook.
// The header is the first row of the selected worksheet; the identifier and
// tax-status columns are located by normalized name, so the sheet may hold
// them at any position and carry unrelated columns.
//
// SHEET LAYOUT (example):
//
//   | Column A | Column B | Column C |
//   |----------|----------|----------|
//   | ASIN     | SKU      | IVA      |
//   | B0001    | SKU-1    | SI       |
//   | B0002    | SKU-2    | NO       |
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/config"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/validation"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// LoadBase reads the base dataset from a worksheet.
//
// PARAMETERS:
//   - filePath:  The path to the workbook.
//   - sheetName: The worksheet holding the dataset.
//   - columns:   Column names; Identifier and TaxStatus are required.
//
// RETURNS:
//   - The consolidated dataset with its workbook layout.
//   - ErrMissingFile, *SheetNotFoundError, ErrEmptySource or *SchemaError.
func LoadBase(filePath, sheetName string, columns config.Columns) (*types.Dataset, error) {
	f, err := open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := requireSheet(f, sheetName); err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 || types.IsRowEmpty(rows[0]) {
		return nil, validation.EmptySource("base", filePath)
	}

	header := rows[0]
	cols, err := validation.RequireColumns("base", header, columns.Identifier, columns.TaxStatus)
	if err != nil {
		return nil, err
	}

	layout := types.Layout{
		Format:     types.FormatWorkbook,
		Header:     header,
		Delimiter:  ',',
		Sheet:      sheetName,
		SheetRows:  len(rows),
		KeyColumn:  cols[validation.NormalizeHeader(columns.Identifier)],
		FlagColumn: cols[validation.NormalizeHeader(columns.TaxStatus)],
		SKUColumn:  validation.OptionalColumn(header, columns.SKUColumn()),
	}

	builder := types.NewBaseBuilder(layout)
	for _, row := range rows[1:] {
		if types.IsRowEmpty(row) {
			continue
		}
		builder.AddRow(types.PadRow(row, len(header)))
	}

	return builder.Dataset(), nil
}

// ListSheets returns the worksheet names of a workbook without modifying it.
func ListSheets(filePath string) ([]string, error) {
	f, err := open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// IsWorkbook reports whether a path has a workbook extension.
func IsWorkbook(filePath string) bool {
	switch extension(filePath) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// open opens a workbook, mapping a missing path to ErrMissingFile.
func open(filePath string) (*excelize.File, error) {
	if _, err := os.Stat(filePath); errors.Is(err, fs.ErrNotExist) {
		return nil, validation.MissingFile("base", filePath)
	}

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return f, nil
}

// requireSheet returns a *SheetNotFoundError when sheetName is absent.
func requireSheet(f *excelize.File, sheetName string) error {
	idx, err := f.GetSheetIndex(sheetName)
	if err != nil || idx < 0 {
		return &validation.SheetNotFoundError{Sheet: sheetName, Available: f.GetSheetList()}
	}
	return nil
}

func extension(filePath string) string {
	return strings.ToLower(filepath.Ext(filePath))
}
