// =============================================================================
// ASIN Tax Reconciler - Host Automation
// =============================================================================
//
// A Refresher drives the spreadsheet host application out of process. The
// HostRefresher renders a PowerShell script that automates Excel through
// COM and runs it as a bounded subprocess:
//
//   Rewrite  - open, clear the data range, bulk-load identifier and flag
//              columns from a staging tab-separated file, recalculate, save
//   Resave   - open, recalculate, save
//   LastRow  - open read-only and report the last populated row of a column
//
// Script and staging files are removed after every call. The subprocess
// output is kept in a diagnostic log whose path is returned in the Outcome.
//
// =============================================================================

package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/validation"
	"github.com/ginjaninja78/asin-tax-reconciler/pkg/utils"
)

// Outcome describes one automation call.
type Outcome struct {
	// LogPath is the diagnostic log holding the subprocess output. Empty
	// when nothing was run.
	LogPath string

	// Output is the combined stdout and stderr of the subprocess.
	Output string
}

// RewriteRequest is the data written by Refresher.Rewrite.
type RewriteRequest struct {
	Path       string
	Sheet      string
	KeyColumn  int // 0-based
	FlagColumn int // 0-based
	ClearRows  int // last row cleared, header included
	Records    []*types.ProductRecord
}

// Refresher runs host automation against a workbook.
type Refresher interface {
	// Available returns nil when automation can run on this machine.
	Available() error
	Rewrite(ctx context.Context, req RewriteRequest) (Outcome, error)
	Resave(ctx context.Context, path string) (Outcome, error)
	LastRow(ctx context.Context, path, sheet string, column int) (int, Outcome, error)
}

// =============================================================================
// DISABLED
// =============================================================================

// Disabled is the Refresher used when host automation is turned off.
type Disabled struct{}

func (Disabled) Available() error { return validation.ErrAutomationUnavailable }

func (Disabled) Rewrite(context.Context, RewriteRequest) (Outcome, error) {
	return Outcome{}, validation.ErrAutomationUnavailable
}

func (Disabled) Resave(context.Context, string) (Outcome, error) {
	return Outcome{}, validation.ErrAutomationUnavailable
}

func (Disabled) LastRow(context.Context, string, string, int) (int, Outcome, error) {
	return 0, Outcome{}, validation.ErrAutomationUnavailable
}

// =============================================================================
// HOST REFRESHER
// =============================================================================

// CommandFunc builds the subprocess for a script. It matches
// exec.CommandContext.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// HostRefresher automates Excel through PowerShell.
type HostRefresher struct {
	Shell   string
	Timeout time.Duration
	LogDir  string
	Logger  *slog.Logger

	// GOOS, LookPath and Command default to the runtime values; tests
	// replace them.
	GOOS     string
	LookPath func(file string) (string, error)
	Command  CommandFunc
}

// NewHostRefresher returns a HostRefresher using the real environment.
func NewHostRefresher(shell string, timeout time.Duration, logDir string, logger *slog.Logger) *HostRefresher {
	return &HostRefresher{
		Shell:    shell,
		Timeout:  timeout,
		LogDir:   logDir,
		Logger:   logger,
		GOOS:     runtime.GOOS,
		LookPath: exec.LookPath,
		Command:  exec.CommandContext,
	}
}

// Available requires Windows and a resolvable shell.
func (h *HostRefresher) Available() error {
	if h.GOOS != "windows" {
		return fmt.Errorf("%w: host automation requires windows, running on %s", validation.ErrAutomationUnavailable, h.GOOS)
	}
	if _, err := h.LookPath(h.Shell); err != nil {
		return fmt.Errorf("%w: shell %q not found", validation.ErrAutomationUnavailable, h.Shell)
	}
	return nil
}

// Rewrite loads both columns into the workbook through the host.
func (h *HostRefresher) Rewrite(ctx context.Context, req RewriteRequest) (Outcome, error) {
	dataPath := utils.StagingPath(h.LogDir, "reconciler-data", ".tsv")
	if err := utils.WriteAtomic(dataPath, stagingData(req)); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", validation.ErrAutomationFailed, err)
	}
	defer utils.RemoveQuietly(dataPath)

	return h.run(ctx, "rewrite", rewriteScript, map[string]any{
		"Path":       req.Path,
		"Sheet":      req.Sheet,
		"KeyColumn":  req.KeyColumn + 1,
		"FlagColumn": req.FlagColumn + 1,
		"ClearRows":  max(req.ClearRows, 2),
		"DataPath":   dataPath,
	})
}

// Resave opens, recalculates and saves the workbook through the host.
func (h *HostRefresher) Resave(ctx context.Context, path string) (Outcome, error) {
	return h.run(ctx, "resave", resaveScript, map[string]any{"Path": path})
}

// LastRow returns the last populated row of a 0-based column.
func (h *HostRefresher) LastRow(ctx context.Context, path, sheet string, column int) (int, Outcome, error) {
	out, err := h.run(ctx, "lastrow", lastRowScript, map[string]any{
		"Path":   path,
		"Sheet":  sheet,
		"Column": column + 1,
	})
	if err != nil {
		return 0, out, err
	}
	row, err := ParseLastRow(out.Output)
	if err != nil {
		return 0, out, fmt.Errorf("%w: %v", validation.ErrAutomationFailed, err)
	}
	return row, out, nil
}

// run renders a script, executes it under the configured timeout and keeps
// its output in a diagnostic log.
func (h *HostRefresher) run(ctx context.Context, name string, tmpl *template.Template, data map[string]any) (Outcome, error) {
	var script bytes.Buffer
	if err := tmpl.Execute(&script, data); err != nil {
		return Outcome{}, fmt.Errorf("%w: render %s script: %v", validation.ErrAutomationFailed, name, err)
	}

	scriptPath := utils.StagingPath(h.LogDir, "reconciler-"+name, ".ps1")
	if err := utils.WriteAtomic(scriptPath, script.Bytes()); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", validation.ErrAutomationFailed, err)
	}
	defer utils.RemoveQuietly(scriptPath)

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := h.Command(runCtx, h.Shell, "-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-File", scriptPath)
	output, runErr := cmd.CombinedOutput()

	out := Outcome{Output: string(output)}
	logPath := utils.StagingPath(h.LogDir, "reconciler-"+name, ".log")
	if err := utils.WriteAtomic(logPath, output); err == nil {
		out.LogPath = logPath
	}

	h.logger().Debug("host automation finished", "step", name, "log", out.LogPath, "error", runErr)

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return out, fmt.Errorf("%w: %s timed out after %s", validation.ErrAutomationFailed, name, timeout)
	case runErr != nil:
		return out, fmt.Errorf("%w: %s: %v", validation.ErrAutomationFailed, name, runErr)
	}
	return out, nil
}

func (h *HostRefresher) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// =============================================================================
// HELPERS
// =============================================================================

var reLastRow = regexp.MustCompile(`LASTROW=(\d+)`)

// ParseLastRow extracts the LASTROW=n marker printed by the last-row script.
func ParseLastRow(output string) (int, error) {
	m := reLastRow.FindStringSubmatch(output)
	if m == nil {
		return 0, errors.New("no LASTROW marker in output")
	}
	return strconv.Atoi(m[1])
}

// stagingData renders one "identifier<TAB>flag" line per record, with the
// same cell texts the object-model writer uses.
func stagingData(req RewriteRequest) []byte {
	var buf bytes.Buffer
	clean := strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")
	for _, rec := range req.Records {
		buf.WriteString(clean.Replace(rec.KeyText(req.KeyColumn)))
		buf.WriteByte('\t')
		buf.WriteString(clean.Replace(rec.FlagText(req.FlagColumn)))
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// psQuote renders s as a single-quoted PowerShell literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// =============================================================================
// SCRIPTS
// =============================================================================

var scriptFuncs = template.FuncMap{"ps": psQuote}

const scriptPrelude = `$ErrorActionPreference = 'Stop'
$excel = New-Object -ComObject Excel.Application
$excel.Visible = $false
$excel.DisplayAlerts = $false
$excel.AskToUpdateLinks = $false
`

const scriptEpilogue = `} finally {
  $excel.Quit()
  [void][System.Runtime.InteropServices.Marshal]::ReleaseComObject($excel)
}
`

var rewriteScript = template.Must(template.New("rewrite").Funcs(scriptFuncs).Parse(scriptPrelude + `try {
  $wb = $excel.Workbooks.Open({{ps .Path}}, 0)
  $ws = $wb.Worksheets.Item({{ps .Sheet}})
  foreach ($col in @({{.KeyColumn}}, {{.FlagColumn}})) {
    [void]$ws.Range($ws.Cells(2, $col), $ws.Cells({{.ClearRows}}, $col)).ClearContents()
  }
  $lines = [System.IO.File]::ReadAllLines({{ps .DataPath}}, [System.Text.Encoding]::UTF8)
  $n = $lines.Length
  if ($n -gt 0) {
    $keys = New-Object 'object[,]' $n, 1
    $flags = New-Object 'object[,]' $n, 1
    for ($i = 0; $i -lt $n; $i++) {
      $parts = $lines[$i].Split("` + "`" + `t")
      $keys[$i, 0] = $parts[0]
      $flags[$i, 0] = $parts[1]
    }
    $keyRange = $ws.Range($ws.Cells(2, {{.KeyColumn}}), $ws.Cells($n + 1, {{.KeyColumn}}))
    $keyRange.NumberFormat = '@'
    $keyRange.Value2 = $keys
    $ws.Range($ws.Cells(2, {{.FlagColumn}}), $ws.Cells($n + 1, {{.FlagColumn}})).Value2 = $flags
  }
  $excel.CalculateFull()
  $wb.Save()
  $wb.Close($false)
  Write-Output "ROWS=$n"
` + scriptEpilogue))

var resaveScript = template.Must(template.New("resave").Funcs(scriptFuncs).Parse(scriptPrelude + `try {
  $wb = $excel.Workbooks.Open({{ps .Path}}, 0)
  $excel.CalculateFull()
  $wb.Save()
  $wb.Close($false)
  Write-Output "RESAVED"
` + scriptEpilogue))

var lastRowScript = template.Must(template.New("lastrow").Funcs(scriptFuncs).Parse(scriptPrelude + `try {
  $wb = $excel.Workbooks.Open({{ps .Path}}, 0, $true)
  $ws = $wb.Worksheets.Item({{ps .Sheet}})
  $last = $ws.Cells($ws.Rows.Count, {{.Column}}).End(-4162).Row
  $wb.Close($false)
  Write-Output "LASTROW=$last"
` + scriptEpilogue))
