package csvparser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/config"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/validation"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetectDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want rune
	}{
		{"semicolon beats comma", "a;b,c;d", ';'},
		{"tab wins ties", "a\tb;c", '\t'},
		{"semicolon wins tie with comma", "a;b,c", ';'},
		{"comma wins tie with pipe", "a,b|c", ','},
		{"pipe only", "a|b|c", '|'},
		{"no candidates defaults to comma", "asin", ','},
		{"empty line defaults to comma", "", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetectDelimiter(tt.line))
		})
	}
}

func TestLoadBase(t *testing.T) {
	t.Parallel()

	cols := config.Default().Columns

	t.Run("semicolon base with trailing delimiter and BOM", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "base.csv", "\ufeffASIN;SKU;IVA;\r\nb001;sku-1;SI;\r\nB002;sku-2;NO;\r\n\r\nb001;sku-3;NO;\r\n")

		ds, err := LoadBase(path, cols)

		require.NoError(t, err)
		assert.Equal(t, ';', ds.Layout.Delimiter)
		assert.True(t, ds.Layout.TrailingDelimiter)
		assert.Equal(t, []string{"ASIN", "SKU", "IVA"}, ds.Layout.Header)
		assert.Equal(t, 0, ds.Layout.KeyColumn)
		assert.Equal(t, 2, ds.Layout.FlagColumn)
		assert.Equal(t, 1, ds.Layout.SKUColumn)
		assert.Equal(t, 3, ds.RawRows)
		require.Equal(t, 2, ds.Len())
		assert.Equal(t, types.Taxed, ds.Get("B001").Flag)
		assert.Equal(t, []string{"b001", "sku-1", "SI"}, ds.Get("B001").Cells)
		assert.Equal(t, []string{"B001", "B001"}, ds.Duplicates)

		assert.Equal(t, "ASIN;SKU;IVA;", ds.Layout.RawHeader)
		raw := ds.Get("B002").Raw
		assert.Equal(t, "B002;sku-2;NO;", raw.Text)
		assert.Equal(t, "NO", raw.Text[raw.FlagStart:raw.FlagEnd])
	})

	t.Run("pads short rows and keeps unrelated columns", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "base.csv", "Notes,asin,iva\nhello,A1\n")

		ds, err := LoadBase(path, cols)

		require.NoError(t, err)
		rec := ds.Get("A1")
		require.NotNil(t, rec)
		assert.Equal(t, []string{"hello", "A1", ""}, rec.Cells)
		assert.Equal(t, types.TaxFlag(""), rec.Flag)
		assert.Equal(t, -1, ds.Layout.SKUColumn)
		assert.Equal(t, "hello,A1", rec.Raw.Text)
		assert.False(t, rec.Raw.HasFlagSpan())
	})

	t.Run("missing tax-status column is a schema error", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "base.csv", "asin,sku\nA1,x\n")

		_, err := LoadBase(path, cols)

		require.Error(t, err)
		var se *validation.SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, []string{"iva"}, se.Missing)
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "base.csv", "\ufeff\r\n")

		_, err := LoadBase(path, cols)

		assert.True(t, errors.Is(err, validation.ErrEmptySource))
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadBase(filepath.Join(t.TempDir(), "nope.csv"), cols)

		assert.True(t, errors.Is(err, validation.ErrMissingFile))
	})
}

func TestLoadReport(t *testing.T) {
	t.Parallel()

	cols := config.Default().Columns

	t.Run("tab separated report", func(t *testing.T) {
		t.Parallel()

		content := "order-id\tsku\tasin\titem-tax\torder-status\n" +
			"1\tS1\tb001\t1,234.50\tShipped\n" +
			"2\tS2\t\t0\tShipped\n" +
			"3\tS3\tB003\n"
		path := writeFile(t, "report.txt", content)

		report, err := LoadReport(path, cols)

		require.NoError(t, err)
		assert.Equal(t, '\t', report.Delimiter)
		assert.True(t, report.HasSKU)
		require.Len(t, report.Observations, 3)

		first := report.Observations[0]
		assert.Equal(t, "B001", first.Key)
		assert.Equal(t, "b001", first.RawKey)
		assert.Equal(t, "S1", first.SKU)
		assert.Equal(t, "1,234.50", first.TaxAmount)
		assert.Equal(t, "Shipped", first.Status)
		assert.Equal(t, 2, first.Line)

		assert.Equal(t, "", report.Observations[1].Key)
		assert.Equal(t, "", report.Observations[2].TaxAmount)
		assert.Equal(t, 4, report.Observations[2].Line)
	})

	t.Run("normalizes header spelling", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "report.csv", "ASIN,Item Tax,Order_Status\nA1,1.00,Pending\n")

		report, err := LoadReport(path, cols)

		require.NoError(t, err)
		assert.False(t, report.HasSKU)
		require.Len(t, report.Observations, 1)
		assert.Equal(t, "Pending", report.Observations[0].Status)
	})

	t.Run("names every missing column", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "report.csv", "asin,sku\nA1,x\n")

		_, err := LoadReport(path, cols)

		var se *validation.SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, []string{"item-tax", "order-status"}, se.Missing)
	})
}
