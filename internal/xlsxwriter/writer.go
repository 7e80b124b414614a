// =============================================================================
// ASIN Tax Reconciler - Workbook Writer
// =============================================================================
//
// This module renders the merged dataset into the base workbook through the
// excelize object model. Only the identifier and tax-status columns of the
// dataset's worksheet are touched:
//
//   1. Clear both columns for every data row present at load time
//   2. Write both columns row by row from row 2, in dataset order
//   3. Request a full recalculation on next open
//   4. Rotate the document identity (identifier, revision, modified time)
//
// The result is returned as bytes; persisting it (and any container-level
// patching) is the caller's concern.
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
)

// Render opens the workbook at filePath, writes ds into it and returns the
// serialized workbook. The file on disk is not modified.
func Render(filePath string, ds *types.Dataset) ([]byte, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if err := WriteColumns(f, ds); err != nil {
		return nil, err
	}
	if err := markForRecalculation(f); err != nil {
		return nil, err
	}
	if err := rotateIdentity(f, time.Now()); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteColumns clears and rewrites the identifier and tax-status columns of
// the dataset's worksheet.
//
// Base records keep their stored identifier text, and their tax-status text
// while it still reads as the record's flag. Rows beyond the dataset length
// that held data at load time are left with both columns empty. Other
// columns are never touched.
func WriteColumns(f *excelize.File, ds *types.Dataset) error {
	layout := ds.Layout
	sheet := layout.Sheet

	keyCol, err := excelize.ColumnNumberToName(layout.KeyColumn + 1)
	if err != nil {
		return fmt.Errorf("invalid identifier column: %w", err)
	}
	flagCol, err := excelize.ColumnNumberToName(layout.FlagColumn + 1)
	if err != nil {
		return fmt.Errorf("invalid tax-status column: %w", err)
	}

	for row := 2; row <= layout.SheetRows; row++ {
		for _, col := range []string{keyCol, flagCol} {
			if err := f.SetCellValue(sheet, col+strconv.Itoa(row), nil); err != nil {
				return fmt.Errorf("failed to clear %s%d: %w", col, row, err)
			}
		}
	}

	for i, rec := range ds.Records() {
		row := strconv.Itoa(i + 2)
		if err := f.SetCellStr(sheet, keyCol+row, rec.KeyText(layout.KeyColumn)); err != nil {
			return fmt.Errorf("failed to write identifier %s: %w", rec.Key, err)
		}
		if err := f.SetCellStr(sheet, flagCol+row, rec.FlagText(layout.FlagColumn)); err != nil {
			return fmt.Errorf("failed to write flag for %s: %w", rec.Key, err)
		}
	}
	return nil
}

// markForRecalculation asks the host application to rebuild every formula
// result when the workbook is next opened.
func markForRecalculation(f *excelize.File) error {
	full := true
	if err := f.SetCalcProps(&excelize.CalcPropsOptions{FullCalcOnLoad: &full}); err != nil {
		return fmt.Errorf("failed to set calculation properties: %w", err)
	}
	return nil
}

// rotateIdentity gives the workbook a new core identifier, bumps the
// revision counter and stamps the modified time.
func rotateIdentity(f *excelize.File, now time.Time) error {
	props, err := f.GetDocProps()
	if err != nil {
		return fmt.Errorf("failed to read document properties: %w", err)
	}

	revision, _ := strconv.Atoi(props.Revision)
	props.Revision = strconv.Itoa(revision + 1)
	props.Identifier = uuid.NewString()
	props.Modified = now.UTC().Format(time.RFC3339)
	if props.Created == "" {
		props.Created = props.Modified
	}

	if err := f.SetDocProps(props); err != nil {
		return fmt.Errorf("failed to write document properties: %w", err)
	}
	return nil
}
