// =============================================================================
// ASIN Tax Reconciler - Delimited Text Loader
// =============================================================================
//
// This module parses delimited text sources: the base dataset when it is kept
// as a text file, and the order report, which is always delimited text.
//
// FEATURES:
//   - Delimiter sniffed from the header line (tab, semicolon, comma, pipe)
//   - Trailing-delimiter convention detected and remembered for writing
//   - UTF-8 decoding with a leading BOM removed and invalid bytes replaced
//   - Case/format-insensitive column lookup (see validation.NormalizeHeader)
//   - Short rows right-padded to header width, blank rows skipped
//
// PARSING PROCESS:
//   1. Check the file exists
//   2. Decode the whole file into memory
//   3. Detect the delimiter and trailing-delimiter convention
//   4. Read and validate the header row
//   5. Read data rows
//
// =============================================================================

package csvparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/config"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/validation"
)

// =============================================================================
// REPORT DATA STRUCTURE
// =============================================================================

// Report represents a parsed order report.
type Report struct {
	// Header contains the raw header row.
	Header []string

	// Delimiter is the detected field separator.
	Delimiter rune

	// HasSKU is true when the report carries the configured SKU column.
	HasSKU bool

	// Observations holds one entry per non-blank data row, in file order.
	Observations []types.ReportObservation

	// SourceFile is the path to the report.
	SourceFile string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// LoadBase reads a delimited base dataset.
//
// PARAMETERS:
//   - filePath: The path to the base file.
//   - columns:  Column names; Identifier and TaxStatus are required.
//
// RETURNS:
//   - The consolidated dataset with its text layout.
//   - ErrMissingFile, ErrEmptySource or a *SchemaError on invalid input.
func LoadBase(filePath string, columns config.Columns) (*types.Dataset, error) {
	src, err := openSource("base", filePath)
	if err != nil {
		return nil, err
	}

	cols, err := validation.RequireColumns("base", src.header, columns.Identifier, columns.TaxStatus)
	if err != nil {
		return nil, err
	}

	layout := types.Layout{
		Format:            types.FormatText,
		Header:            src.header,
		RawHeader:         src.rawHeader,
		Delimiter:         src.delimiter,
		TrailingDelimiter: src.trailing,
		KeyColumn:         cols[validation.NormalizeHeader(columns.Identifier)],
		FlagColumn:        cols[validation.NormalizeHeader(columns.TaxStatus)],
		SKUColumn:         validation.OptionalColumn(src.header, columns.SKUColumn()),
	}

	builder := types.NewBaseBuilder(layout)
	err = src.eachRow(func(row []string, _ int, raw string, fields int) {
		start, end := src.fieldSpan(raw, layout.FlagColumn, fields)
		builder.AddSourceRow(row, types.RawRow{Text: raw, FlagStart: start, FlagEnd: end})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read base: %w", err)
	}

	return builder.Dataset(), nil
}

// LoadReport reads an order report.
//
// PARAMETERS:
//   - filePath: The path to the report file.
//   - columns:  Column names; Identifier, TaxAmount and OrderStatus are
//               required, SKU is optional.
//
// RETURNS:
//   - The parsed report, rows in file order.
//   - ErrMissingFile, ErrEmptySource or a *SchemaError on invalid input.
func LoadReport(filePath string, columns config.Columns) (*Report, error) {
	src, err := openSource("report", filePath)
	if err != nil {
		return nil, err
	}

	cols, err := validation.RequireColumns("report", src.header,
		columns.Identifier, columns.TaxAmount, columns.OrderStatus)
	if err != nil {
		return nil, err
	}

	keyCol := cols[validation.NormalizeHeader(columns.Identifier)]
	amountCol := cols[validation.NormalizeHeader(columns.TaxAmount)]
	statusCol := cols[validation.NormalizeHeader(columns.OrderStatus)]
	skuCol := validation.OptionalColumn(src.header, columns.SKUColumn())

	report := &Report{
		Header:     src.header,
		Delimiter:  src.delimiter,
		HasSKU:     skuCol >= 0,
		SourceFile: filePath,
	}

	err = src.eachRow(func(row []string, line int, _ string, _ int) {
		raw := strings.TrimSpace(row[keyCol])
		obs := types.ReportObservation{
			Key:       types.NormalizeKey(raw),
			RawKey:    raw,
			TaxAmount: strings.TrimSpace(row[amountCol]),
			Status:    strings.TrimSpace(row[statusCol]),
			Line:      line,
		}
		if skuCol >= 0 {
			obs.SKU = strings.TrimSpace(row[skuCol])
		}
		report.Observations = append(report.Observations, obs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	return report, nil
}

// =============================================================================
// SOURCE READING
// =============================================================================

// source is a decoded text file positioned after its header row.
type source struct {
	text      string
	reader    *csv.Reader
	header    []string
	rawHeader string
	delimiter rune
	trailing  bool
}

// openSource decodes filePath and reads its header row.
func openSource(role, filePath string) (*source, error) {
	text, err := readText(role, filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, validation.EmptySource(role, filePath)
	}

	headerLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		headerLine = text[:i]
	}
	delimiter := DetectDelimiter(headerLine)
	trailing := hasTrailingDelimiter(headerLine, delimiter)

	reader := csv.NewReader(strings.NewReader(text))
	configureReader(reader, delimiter)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, validation.EmptySource(role, filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", role, err)
	}
	if trailing && len(header) > 1 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}

	return &source{
		text:      text,
		reader:    reader,
		header:    header,
		rawHeader: rawRecord(text, 0, reader.InputOffset()),
		delimiter: delimiter,
		trailing:  trailing,
	}, nil
}

// eachRow calls fn for every non-blank data row, padded to the header
// width, with its 1-based line number, its source text and the number of
// fields actually read. fn may call fieldSpan.
func (s *source) eachRow(fn func(row []string, line int, raw string, fields int)) error {
	width := len(s.header)
	for {
		start := s.reader.InputOffset()
		row, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if types.IsRowEmpty(row) {
			continue
		}
		raw, fields := rawRecord(s.text, start, s.reader.InputOffset()), len(row)
		if s.trailing && len(row) > width && row[len(row)-1] == "" {
			row = row[:len(row)-1]
		}
		line, _ := s.reader.FieldPos(0)
		fn(types.PadRow(row, width), line, raw, fields)
	}
}

// fieldSpan locates field index of the row last read inside its source text
// raw. It returns -1, -1 for fields the row does not have and for records
// spanning several lines.
func (s *source) fieldSpan(raw string, index, fields int) (int, int) {
	if index < 0 || index >= fields || strings.ContainsAny(raw, "\r\n") {
		return -1, -1
	}

	_, col := s.reader.FieldPos(index)
	start, end := col-1, len(raw)
	if index+1 < fields {
		_, next := s.reader.FieldPos(index + 1)
		end = next - 1 - utf8.RuneLen(s.delimiter)
	}
	if start < 0 || end < start || end > len(raw) {
		return -1, -1
	}
	return start, end
}

// rawRecord returns text[from:to] without skipped blank lines before the
// record and without its line terminator.
func rawRecord(text string, from, to int64) string {
	raw := strings.TrimLeft(text[from:to], "\r\n")
	raw = strings.TrimSuffix(raw, "\n")
	return strings.TrimSuffix(raw, "\r")
}

// readText reads filePath as UTF-8, dropping a leading byte order mark.
// Invalid byte sequences are replaced with U+FFFD.
func readText(role, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", validation.MissingFile(role, filePath)
	}
	if err != nil {
		return "", fmt.Errorf("failed to open %s file: %w", role, err)
	}
	defer file.Close()

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(file, decoder))
	if err != nil {
		return "", fmt.Errorf("failed to read %s file: %w", role, err)
	}
	return string(data), nil
}

// configureReader configures the CSV reader for sniffed input.
func configureReader(reader *csv.Reader, delimiter rune) {
	reader.Comma = delimiter

	// Allow variable number of fields per row; short rows are padded.
	reader.FieldsPerRecord = -1

	// Exports from the marketplace are not strict about quoting.
	reader.LazyQuotes = true

	reader.ReuseRecord = false
}
