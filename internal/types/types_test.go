package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaxFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want TaxFlag
	}{
		{"SI", Taxed},
		{" si ", Taxed},
		{"Sí", Taxed},
		{"yes", Taxed},
		{"1", Taxed},
		{"NO", NotTaxed},
		{"false", NotTaxed},
		{"pendiente", TaxFlag("pendiente")},
		{"", TaxFlag("")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTaxFlag(tt.in), "input %q", tt.in)
	}
}

func TestTaxFlagMerge(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Taxed, NotTaxed.Merge(Taxed))
	assert.Equal(t, Taxed, Taxed.Merge(NotTaxed))
	assert.Equal(t, NotTaxed, NotTaxed.Merge(NotTaxed))
	assert.Equal(t, TaxFlag("x"), TaxFlag("x").Merge(NotTaxed))
	assert.Equal(t, Taxed, TaxFlag("x").Merge(Taxed))
}

func TestBaseBuilder(t *testing.T) {
	t.Parallel()

	layout := Layout{Header: []string{"asin", "sku", "iva"}, KeyColumn: 0, SKUColumn: 1, FlagColumn: 2}

	t.Run("consolidates duplicates with taxed wins", func(t *testing.T) {
		t.Parallel()

		b := NewBaseBuilder(layout)
		b.AddRow([]string{"a1", "s1", "NO"})
		b.AddRow([]string{"B2", "s2", "NO"})
		b.AddRow([]string{"A1", "s3", "SI"})
		b.AddRow([]string{"a1", "s4", "NO"})
		b.AddRow([]string{"", "s5", "SI"})

		ds := b.Dataset()

		require.Equal(t, 2, ds.Len())
		assert.Equal(t, 5, ds.RawRows)
		assert.Equal(t, Taxed, ds.Get("A1").Flag)
		assert.Equal(t, "a1", ds.Get("A1").Display)
		assert.Equal(t, "s1", ds.Get("A1").SKU)
		assert.Equal(t, NotTaxed, ds.Get("B2").Flag)
		assert.Equal(t, []string{"A1", "A1", "A1"}, ds.Duplicates)
	})

	t.Run("records equal duplicates too", func(t *testing.T) {
		t.Parallel()

		b := NewBaseBuilder(layout)
		b.AddRow([]string{"X", "", "SI"})
		b.AddRow([]string{"x", "", "SI"})

		assert.Equal(t, []string{"X", "X"}, b.Dataset().Duplicates)
		assert.Equal(t, 1, b.Dataset().Len())
	})
}

func TestDataset(t *testing.T) {
	t.Parallel()

	ds := NewDataset(Layout{Header: []string{"asin", "iva"}})
	ds.Append(&ProductRecord{Key: "A", Flag: Taxed, Cells: []string{"A", "SI"}})
	ds.Append(&ProductRecord{Key: "B", Flag: NotTaxed})
	assert.Equal(t, 1, ds.Append(&ProductRecord{Key: "B", Flag: Taxed}))

	clone := ds.Clone()
	clone.Get("A").Flag = NotTaxed
	clone.Get("A").Cells[1] = "NO"
	clone.Append(&ProductRecord{Key: "C"})

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, Taxed, ds.Get("A").Flag)
	assert.Equal(t, "SI", ds.Get("A").Cells[1])
	assert.Equal(t, NotTaxed, ds.Get("B").Flag)
	assert.Len(t, clone.Tail(2), 1)
	assert.Nil(t, ds.Tail(5))
	assert.Equal(t, map[string]TaxFlag{"A": Taxed, "B": NotTaxed}, ds.Flags())
}

func TestPadRow(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "", ""}, PadRow([]string{"a"}, 3))
	assert.Equal(t, []string{"a", "b"}, PadRow([]string{"a", "b"}, 1))
	assert.True(t, IsRowEmpty([]string{" ", ""}))
	assert.False(t, IsRowEmpty([]string{" ", "x"}))
}

func TestProductRecordClone(t *testing.T) {
	t.Parallel()

	fromReport := &ProductRecord{Key: "B", Display: "b", Flag: Taxed, SKU: "sku-1"}
	c := fromReport.Clone()
	assert.Equal(t, fromReport, c)
	assert.Nil(t, c.Cells)

	fromBase := &ProductRecord{Key: "A", Flag: NotTaxed, Cells: []string{"A", "NO"}}
	c = fromBase.Clone()
	c.Cells[1] = "SI"
	assert.Equal(t, "NO", fromBase.Cells[1])
}

func TestProductRecordCellText(t *testing.T) {
	t.Parallel()

	base := &ProductRecord{Key: "A1", Display: "A1", Flag: Taxed, Cells: []string{" a1 ", "yes"}}
	assert.Equal(t, " a1 ", base.KeyText(0))
	assert.Equal(t, "yes", base.FlagText(1))

	base.Flag = NotTaxed
	assert.Equal(t, "NO", base.FlagText(1))

	added := &ProductRecord{Key: "B2", Display: "b2", Flag: Taxed}
	assert.Equal(t, "b2", added.KeyText(0))
	assert.Equal(t, "SI", added.FlagText(1))
	assert.Equal(t, "B2", (&ProductRecord{Key: "B2"}).KeyText(0))
}
