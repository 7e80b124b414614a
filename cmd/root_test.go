package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReconcileCommand(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.csv")
	report := filepath.Join(dir, "orders.txt")
	require.NoError(t, os.WriteFile(base, []byte("asin,iva\r\nA,NO\r\n"), 0o644))
	require.NoError(t, os.WriteFile(report, []byte("asin\titem-tax\torder-status\nA\t3\tShipped\nB\t\tShipped\n"), 0o644))

	out, err := execute(t, "reconcile", "--base", base, "--report", report, "--report-out", filepath.Join(dir, "changes.txt"))

	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	data, err := os.ReadFile(base)
	require.NoError(t, err)
	assert.Equal(t, "asin,iva\r\nA,SI\r\nB,NO\r\n", string(data))
	assert.FileExists(t, filepath.Join(dir, "base_new.csv"))
	assert.FileExists(t, filepath.Join(dir, "base.summary"))
	assert.FileExists(t, filepath.Join(dir, "changes.txt"))
}

func TestSheetsCommand(t *testing.T) {
	f := excelize.NewFile()
	_, err := f.NewSheet("Base")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	out, err := execute(t, "sheets", path)

	require.NoError(t, err)
	assert.Equal(t, "Sheet1\nBase\n", out)

	_, err = execute(t, "sheets", "orders.txt")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "ASIN Tax Reconciler")
	assert.Contains(t, out, "Version:    "+Version)
}
