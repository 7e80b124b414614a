package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/validation"
)

// TestHelperProcess is executed as the automation subprocess. It prints
// HELPER_OUTPUT and exits with HELPER_EXIT.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, os.Getenv("HELPER_OUTPUT"))
	if os.Getenv("HELPER_SLEEP") != "" {
		time.Sleep(10 * time.Second)
	}
	if os.Getenv("HELPER_EXIT") == "1" {
		os.Exit(1)
	}
	os.Exit(0)
}

// helperRefresher returns a HostRefresher whose subprocess is the test
// binary. The script path handed to the shell is recorded in scripts.
func helperRefresher(t *testing.T, env []string, scripts *[]string) *HostRefresher {
	t.Helper()

	h := NewHostRefresher("powershell", 5*time.Second, t.TempDir(), nil)
	h.GOOS = "windows"
	h.LookPath = func(string) (string, error) { return "powershell.exe", nil }
	h.Command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		script := args[len(args)-1]
		if scripts != nil {
			body, err := os.ReadFile(script)
			require.NoError(t, err)
			*scripts = append(*scripts, string(body))
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"), env...)
		return cmd
	}
	return h
}

func TestHostRefresherAvailable(t *testing.T) {
	t.Parallel()

	h := NewHostRefresher("powershell", time.Minute, t.TempDir(), nil)

	h.GOOS = "linux"
	assert.ErrorIs(t, h.Available(), validation.ErrAutomationUnavailable)

	h.GOOS = "windows"
	h.LookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	assert.ErrorIs(t, h.Available(), validation.ErrAutomationUnavailable)

	h.LookPath = func(string) (string, error) { return `C:\powershell.exe`, nil }
	assert.NoError(t, h.Available())
}

func TestHostRefresherRewrite(t *testing.T) {
	t.Parallel()

	var scripts []string
	h := helperRefresher(t, []string{"HELPER_OUTPUT=ROWS=2"}, &scripts)

	out, err := h.Rewrite(context.Background(), RewriteRequest{
		Path:       `C:\data\o'brien.xlsx`,
		Sheet:      "Sheet1",
		KeyColumn:  0,
		FlagColumn: 2,
		ClearRows:  10,
		Records: []*types.ProductRecord{
			{Key: "A1", Display: "a1", Flag: types.Taxed},
			{Key: "B2", Flag: types.NotTaxed},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "ROWS=2", out.Output)
	require.NotEmpty(t, out.LogPath)
	logged, err := os.ReadFile(out.LogPath)
	require.NoError(t, err)
	assert.Equal(t, "ROWS=2", string(logged))

	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0], `'C:\data\o''brien.xlsx'`)
	assert.Contains(t, scripts[0], "$ws.Cells(10, $col)")
	assert.Contains(t, scripts[0], "foreach ($col in @(1, 3))")

	entries, err := os.ReadDir(h.LogDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the diagnostic log remains")
	assert.Equal(t, filepath.Base(out.LogPath), entries[0].Name())
}

func TestHostRefresherFailures(t *testing.T) {
	t.Parallel()

	t.Run("non-zero exit", func(t *testing.T) {
		t.Parallel()

		h := helperRefresher(t, []string{"HELPER_OUTPUT=boom", "HELPER_EXIT=1"}, nil)

		out, err := h.Resave(context.Background(), "book.xlsx")

		assert.ErrorIs(t, err, validation.ErrAutomationFailed)
		assert.Equal(t, "boom", out.Output)
		assert.NotEmpty(t, out.LogPath)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		h := helperRefresher(t, []string{"HELPER_SLEEP=1"}, nil)
		h.Timeout = 200 * time.Millisecond

		_, err := h.Resave(context.Background(), "book.xlsx")

		assert.ErrorIs(t, err, validation.ErrAutomationFailed)
		assert.Contains(t, err.Error(), "timed out")
	})
}

func TestHostRefresherLastRow(t *testing.T) {
	t.Parallel()

	h := helperRefresher(t, []string{"HELPER_OUTPUT=noise\r\nLASTROW=42\r\n"}, nil)

	row, out, err := h.LastRow(context.Background(), "book.xlsx", "Sheet1", 0)

	require.NoError(t, err)
	assert.Equal(t, 42, row)
	assert.NotEmpty(t, out.LogPath)
}

func TestParseLastRow(t *testing.T) {
	t.Parallel()

	n, err := ParseLastRow("x\nLASTROW=7\n")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = ParseLastRow("nothing")
	assert.Error(t, err)
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	var r Refresher = Disabled{}

	assert.ErrorIs(t, r.Available(), validation.ErrAutomationUnavailable)
	_, err := r.Rewrite(context.Background(), RewriteRequest{})
	assert.True(t, errors.Is(err, validation.ErrAutomationUnavailable))
}

func TestStagingData(t *testing.T) {
	t.Parallel()

	data := stagingData(RewriteRequest{KeyColumn: 0, FlagColumn: 1, Records: []*types.ProductRecord{
		{Key: "A1", Display: "a\t1", Flag: types.Taxed},
		{Key: "B2", Flag: types.TaxFlag("maybe")},
		{Key: "C3", Flag: types.Taxed, Cells: []string{"c3", "yes"}},
		{Key: "D4", Flag: types.Taxed, Cells: []string{"d4", "no"}},
	}})

	assert.Equal(t, "a 1\tSI\r\nB2\tmaybe\r\nc3\tyes\r\nd4\tSI\r\n", string(data))
}
