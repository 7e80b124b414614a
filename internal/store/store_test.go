package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/config"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/logging"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/workbook"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	layer := workbook.NewLayer(workbook.Options{}, nil, nil, logging.Discard())

	tests := []struct {
		path    string
		opts    Options
		want    types.Format
		wantErr bool
	}{
		{path: "base.csv", want: types.FormatText},
		{path: "base.TSV", want: types.FormatText},
		{path: "base.txt", want: types.FormatText},
		{path: "base.xlsx", opts: Options{Layer: layer}, want: types.FormatWorkbook},
		{path: "base.XLSM", opts: Options{Layer: layer}, want: types.FormatWorkbook},
		{path: "base.xlsx", wantErr: true},
		{path: "base.xls", opts: Options{Layer: layer}, wantErr: true},
	}

	for _, tt := range tests {
		s, err := Open(tt.path, tt.opts)
		if tt.wantErr {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, s.Format(), tt.path)
		assert.Equal(t, tt.path, s.Path())
	}
}

func TestTextStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "base.csv")
	require.NoError(t, os.WriteFile(path, []byte("asin;iva\r\nA;SI\r\n"), 0o644))

	s, err := Open(path, Options{Columns: config.Default().Columns})
	require.NoError(t, err)

	ds, err := s.Load()
	require.NoError(t, err)
	ds.Append(&types.ProductRecord{Key: "B", Flag: types.NotTaxed})

	report, err := s.Save(context.Background(), ds)
	require.NoError(t, err)
	assert.Nil(t, report)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "asin;iva\r\nA;SI\r\nB;NO\r\n", string(data))
}

func TestWorkbookStoreRoundTrip(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Base"))
	require.NoError(t, f.SetSheetRow("Base", "A1", &[]interface{}{"ASIN", "IVA"}))
	require.NoError(t, f.SetSheetRow("Base", "A2", &[]interface{}{"A", "NO"}))
	path := filepath.Join(t.TempDir(), "base.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	layer := workbook.NewLayer(workbook.Options{PatchContainer: true}, nil, nil, logging.Discard())
	s, err := Open(path, Options{Columns: config.Default().Columns, Sheet: "Base", Layer: layer})
	require.NoError(t, err)

	ds, err := s.Load()
	require.NoError(t, err)
	ds.Get("A").Flag = types.Taxed
	ds.Append(&types.ProductRecord{Key: "B", Flag: types.NotTaxed})

	report, err := s.Save(context.Background(), ds)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, workbook.TierModel, report.Tier)

	reloaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]types.TaxFlag{"A": types.Taxed, "B": types.NotTaxed}, reloaded.Flags())
}
