package types

import "strings"

// BaseBuilder accumulates base rows into a Dataset, consolidating repeated
// identifiers. It is shared by the text and workbook loaders so both apply
// the same rule.
type BaseBuilder struct {
	ds     *Dataset
	counts map[string]int
}

// NewBaseBuilder starts an empty dataset with the given layout.
func NewBaseBuilder(layout Layout) *BaseBuilder {
	return &BaseBuilder{
		ds:     NewDataset(layout),
		counts: make(map[string]int),
	}
}

// AddRow consumes one data row padded to the header width. Rows without an
// identifier count toward RawRows but produce no record.
//
// A repeated identifier is folded into the first record: taxed wins, and
// every occurrence (the first one included) is appended to Duplicates.
func (b *BaseBuilder) AddRow(cells []string) {
	b.AddSourceRow(cells, RawRow{})
}

// AddSourceRow is AddRow for delimited text: raw is kept on the record so
// the row can be written back as it was read.
func (b *BaseBuilder) AddSourceRow(cells []string, raw RawRow) {
	l := b.ds.Layout
	b.ds.RawRows++

	display := cellAt(cells, l.KeyColumn)
	key := NormalizeKey(display)
	if key == "" {
		return
	}
	flag := ParseTaxFlag(cellAt(cells, l.FlagColumn))

	b.counts[key]++
	switch n := b.counts[key]; {
	case n == 1:
		b.ds.Append(&ProductRecord{
			Key:     key,
			Display: strings.TrimSpace(display),
			Flag:    flag,
			SKU:     strings.TrimSpace(cellAt(cells, l.SKUColumn)),
			Cells:   cells,
			Raw:     raw,
		})
		return
	case n == 2:
		b.ds.Duplicates = append(b.ds.Duplicates, key, key)
	default:
		b.ds.Duplicates = append(b.ds.Duplicates, key)
	}

	rec := b.ds.Get(key)
	rec.Flag = rec.Flag.Merge(flag)
}

// Dataset returns the consolidated dataset.
func (b *BaseBuilder) Dataset() *Dataset { return b.ds }

// PadRow right-pads row with empty values to width. Longer rows are
// returned unchanged.
func PadRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// IsRowEmpty checks if a row contains only blank values.
func IsRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}
