package xlsxwriter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/config"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/reconcile"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/xlsxparser"
)

func newWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &rows[i]))
	}
	require.NoError(t, f.SetDocProps(&excelize.DocProperties{Revision: "4", Identifier: "original"}))

	path := filepath.Join(t.TempDir(), "base.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func renderTo(t *testing.T, path string, ds *types.Dataset) *excelize.File {
	t.Helper()

	data, err := Render(path, ds)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRender(t *testing.T) {
	t.Parallel()

	cols := config.Default().Columns

	t.Run("round trip through the loader", func(t *testing.T) {
		t.Parallel()

		path := newWorkbook(t, [][]interface{}{
			{"ASIN", "Title", "IVA"},
			{"a1", "t1", "NO"},
			{"B2", "t2", "SI"},
		})
		base, err := xlsxparser.LoadBase(path, "Sheet1", cols)
		require.NoError(t, err)

		merged, _ := reconcile.Reconcile(base, []types.ReportObservation{
			{Key: "A1", RawKey: "a1", TaxAmount: "2.50", Status: "Shipped"},
			{Key: "C3", RawKey: "C3", TaxAmount: "0", Status: "Shipped"},
		})

		f := renderTo(t, path, merged)

		reloaded, err := xlsxparser.LoadBase(path, "Sheet1", cols)
		require.NoError(t, err)
		assert.Equal(t, merged.Flags(), reloaded.Flags())

		title, err := f.GetCellValue("Sheet1", "B2")
		require.NoError(t, err)
		assert.Equal(t, "t1", title)
		key, err := f.GetCellValue("Sheet1", "A4")
		require.NoError(t, err)
		assert.Equal(t, "C3", key)
	})

	t.Run("clears rows freed by consolidation", func(t *testing.T) {
		t.Parallel()

		path := newWorkbook(t, [][]interface{}{
			{"ASIN", "IVA"},
			{"A1", "NO"},
			{"a1", "SI"},
			{"B2", "NO"},
		})
		base, err := xlsxparser.LoadBase(path, "Sheet1", cols)
		require.NoError(t, err)
		require.Equal(t, 2, base.Len())

		f := renderTo(t, path, base)

		rows, err := f.GetRows("Sheet1")
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(rows), 3)
		assert.Equal(t, []string{"A1", "SI"}, rows[1])
		assert.Equal(t, []string{"B2", "NO"}, rows[2])
		for _, row := range rows[3:] {
			assert.True(t, types.IsRowEmpty(row))
		}
	})

	t.Run("keeps stored flag text that still matches", func(t *testing.T) {
		t.Parallel()

		path := newWorkbook(t, [][]interface{}{
			{"ASIN", "IVA"},
			{"A1", "yes"},
			{"B2", "no"},
		})
		base, err := xlsxparser.LoadBase(path, "Sheet1", cols)
		require.NoError(t, err)

		merged, _ := reconcile.Reconcile(base, []types.ReportObservation{
			{Key: "B2", RawKey: "B2", TaxAmount: "1", Status: "Shipped"},
		})

		f := renderTo(t, path, merged)

		rows, err := f.GetRows("Sheet1")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"A1", "yes"}, rows[1])
		assert.Equal(t, []string{"B2", "SI"}, rows[2])
	})

	t.Run("requests recalculation and rotates identity", func(t *testing.T) {
		t.Parallel()

		path := newWorkbook(t, [][]interface{}{{"ASIN", "IVA"}, {"A1", "SI"}})
		base, err := xlsxparser.LoadBase(path, "Sheet1", cols)
		require.NoError(t, err)

		f := renderTo(t, path, base)

		calc, err := f.GetCalcProps()
		require.NoError(t, err)
		require.NotNil(t, calc.FullCalcOnLoad)
		assert.True(t, *calc.FullCalcOnLoad)

		props, err := f.GetDocProps()
		require.NoError(t, err)
		assert.Equal(t, "5", props.Revision)
		assert.NotEqual(t, "original", props.Identifier)
		assert.NotEmpty(t, props.Modified)
	})

	t.Run("missing workbook", func(t *testing.T) {
		t.Parallel()

		_, err := Render(filepath.Join(t.TempDir(), "none.xlsx"), types.NewDataset(types.Layout{}))

		assert.Error(t, err)
	})
}
