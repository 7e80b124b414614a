// =============================================================================
// ASIN Tax Reconciler - Delimited Text Writer
// =============================================================================
//
// This module serializes a dataset back to delimited text. It is used for:
//   - Persisting a text base in place (WriteDataset)
//   - Producing the preview of newly added records (WritePreview), for both
//     text and workbook bases
//
// OUTPUT CONVENTIONS:
//   - The original header line, columns in their original positions
//   - The delimiter detected when the base was loaded
//   - A trailing delimiter on every line when the base had one
//   - CRLF line endings on every platform, UTF-8 without BOM
//   - Base rows written back as read; a changed flag replaces only the
//     tax-status field
//
// The whole file is rendered in memory and then moved into place, so the
// destination is never left half-written.
//
// =============================================================================

package csvwriter

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/pkg/utils"
)

// =============================================================================
// WRITE FUNCTIONS
// =============================================================================

// WriteDataset replaces filePath with the full merged dataset.
func WriteDataset(filePath string, ds *types.Dataset) error {
	data, err := EncodeDataset(ds)
	if err != nil {
		return err
	}
	if err := utils.WriteAtomic(filePath, data); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}

// WritePreview writes the header plus the records at or after offset.
//
// PARAMETERS:
//   - filePath:  Destination of the preview.
//   - ds:        The merged dataset.
//   - offset:    The first new index from the change set.
//   - delimiter: Separator to use; 0 keeps the dataset's own delimiter.
func WritePreview(filePath string, ds *types.Dataset, offset int, delimiter rune) error {
	data, err := EncodePreview(ds, offset, delimiter)
	if err != nil {
		return err
	}
	if err := utils.WriteAtomic(filePath, data); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	return nil
}

// =============================================================================
// ENCODING
// =============================================================================

// EncodeDataset renders every record of ds.
func EncodeDataset(ds *types.Dataset) ([]byte, error) {
	return encode(ds.Layout, ds.Records(), ds.Layout.Delimiter, ds.Layout.TrailingDelimiter)
}

// EncodePreview renders the records of ds at or after offset.
func EncodePreview(ds *types.Dataset, offset int, delimiter rune) ([]byte, error) {
	trailing := ds.Layout.TrailingDelimiter
	if delimiter == 0 {
		delimiter = ds.Layout.Delimiter
	}
	if ds.Layout.Format == types.FormatWorkbook {
		trailing = false
	}
	return encode(ds.Layout, ds.Tail(offset), delimiter, trailing)
}

func encode(layout types.Layout, records []*types.ProductRecord, delimiter rune, trailing bool) ([]byte, error) {
	if delimiter == 0 {
		delimiter = ','
	}
	// Source text can only be reused when the output keeps the source format.
	verbatim := layout.Format == types.FormatText && delimiter == layout.Delimiter

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = delimiter
	w.UseCRLF = true

	write := func(fields []string) error {
		if trailing {
			fields = append(fields[:len(fields):len(fields)], "")
		}
		if err := w.Write(fields); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	}
	writeLine := func(line string) {
		buf.WriteString(line)
		buf.WriteString("\r\n")
	}

	if verbatim && layout.RawHeader != "" {
		writeLine(layout.RawHeader)
	} else if err := write(layout.Header); err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}

	for _, rec := range records {
		if verbatim {
			if line, ok := SourceLine(layout, rec); ok {
				writeLine(line)
				continue
			}
		}
		if err := write(Row(layout, rec)); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", rec.Key, err)
		}
	}
	return buf.Bytes(), nil
}

// SourceLine returns a base record's row as it was read. When the flag no
// longer matches the stored cell, only the tax-status field is replaced.
// ok is false when the record has no source text or the field cannot be
// located.
func SourceLine(layout types.Layout, rec *types.ProductRecord) (line string, ok bool) {
	raw := rec.Raw
	if raw.Text == "" {
		return "", false
	}

	flag := rec.FlagText(layout.FlagColumn)
	if layout.FlagColumn < len(rec.Cells) && flag == rec.Cells[layout.FlagColumn] {
		return raw.Text, true
	}
	if !raw.HasFlagSpan() {
		return "", false
	}
	return raw.Text[:raw.FlagStart] + flag + raw.Text[raw.FlagEnd:], true
}

// Row builds the output cells of one record.
//
// Base records start from all of their original cells, including any beyond
// the header width. New records get the identifier, the flag and, when the
// layout has one, the SKU; every other column is empty. The tax-status cell
// keeps its stored text while it still reads as the record's flag.
func Row(layout types.Layout, rec *types.ProductRecord) []string {
	row := make([]string, max(layout.Width(), len(rec.Cells)))

	if rec.Cells != nil {
		copy(row, rec.Cells)
	} else {
		row[layout.KeyColumn] = rec.KeyText(layout.KeyColumn)
		if layout.SKUColumn >= 0 {
			row[layout.SKUColumn] = rec.SKU
		}
	}

	row[layout.FlagColumn] = rec.FlagText(layout.FlagColumn)
	return row
}
