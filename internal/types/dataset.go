package types

// =============================================================================
// FORMAT METADATA
// =============================================================================

// Format identifies how a dataset is persisted.
type Format int

const (
	// FormatText is a delimited text file.
	FormatText Format = iota

	// FormatWorkbook is an xlsx workbook.
	FormatWorkbook
)

func (f Format) String() string {
	if f == FormatWorkbook {
		return "workbook"
	}
	return "text"
}

// Layout records everything needed to write a dataset back in the shape it
// was read from.
type Layout struct {
	Format Format

	// Header is the original header row. For text files with a trailing
	// delimiter the empty trailing field is not part of Header.
	Header []string

	// RawHeader is the header line as read, without its line terminator
	// (text files).
	RawHeader string

	// Delimiter is the detected field separator (text files).
	Delimiter rune

	// TrailingDelimiter is true when every line ends with the delimiter.
	TrailingDelimiter bool

	// Sheet is the worksheet name (workbooks).
	Sheet string

	// SheetRows is the number of populated rows in the sheet, header
	// included, at load time (workbooks).
	SheetRows int

	// KeyColumn, FlagColumn and SKUColumn are 0-based header positions.
	// SKUColumn is -1 when the source has no SKU column.
	KeyColumn  int
	FlagColumn int
	SKUColumn  int
}

// Width returns the number of header columns.
func (l Layout) Width() int { return len(l.Header) }

// =============================================================================
// DATASET
// =============================================================================

// Dataset is an insertion-ordered mapping of identifier -> ProductRecord.
type Dataset struct {
	Layout Layout

	// RawRows is the number of non-empty data rows read from the source.
	RawRows int

	// Duplicates lists every occurrence of an identifier that appeared more
	// than once in the source, first occurrence included.
	Duplicates []string

	records []*ProductRecord
	index   map[string]int
}

// NewDataset returns an empty dataset with the given layout.
func NewDataset(layout Layout) *Dataset {
	return &Dataset{
		Layout: layout,
		index:  make(map[string]int),
	}
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// Get returns the record for key, or nil.
func (d *Dataset) Get(key string) *ProductRecord {
	if i, ok := d.index[key]; ok {
		return d.records[i]
	}
	return nil
}

// Append adds a record at the end of the iteration order and returns its
// offset. An existing key is not appended twice; its offset is returned.
func (d *Dataset) Append(rec *ProductRecord) int {
	if i, ok := d.index[rec.Key]; ok {
		return i
	}
	d.index[rec.Key] = len(d.records)
	d.records = append(d.records, rec)
	return len(d.records) - 1
}

// Records returns the records in iteration order. The slice must not be
// modified by the caller.
func (d *Dataset) Records() []*ProductRecord { return d.records }

// Tail returns the records at or after offset.
func (d *Dataset) Tail(offset int) []*ProductRecord {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(d.records) {
		return nil
	}
	return d.records[offset:]
}

// Flags returns key -> flag for every record.
func (d *Dataset) Flags() map[string]TaxFlag {
	out := make(map[string]TaxFlag, len(d.records))
	for _, r := range d.records {
		out[r.Key] = r.Flag
	}
	return out
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	c := NewDataset(d.Layout)
	c.Layout.Header = append([]string(nil), d.Layout.Header...)
	c.RawRows = d.RawRows
	c.Duplicates = append([]string(nil), d.Duplicates...)
	for _, r := range d.records {
		c.Append(r.Clone())
	}
	return c
}
