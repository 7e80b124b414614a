package pipeline

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
	"github.com/ginjaninja78/asin-tax-reconciler/pkg/utils"
)

// ReportMeta is the header of the free-text change report.
type ReportMeta struct {
	RunID      string
	Generated  time.Time
	BasePath   string
	ReportPath string
	DryRun     bool
}

// WriteChangeReport writes the human-readable list of changes.
//
// FORMAT:
//   ASIN tax reconciliation
//   Run:       <run id>
//   Generated: 2006-01-02 15:04:05
//   ...
//
//   Added (2)
//     B0001  SI
//   Modified (1)
//     B0002  NO -> SI
//   Excluded, cancelled only (1)
//     B0003
//   Removed base duplicates (1)
//     B0004  x3
func WriteChangeReport(filePath string, meta ReportMeta, changes *types.ChangeSet) error {
	if err := utils.WriteAtomic(filePath, RenderChangeReport(meta, changes)); err != nil {
		return fmt.Errorf("failed to write change report: %w", err)
	}
	return nil
}

// RenderChangeReport renders the change report in memory.
func RenderChangeReport(meta ReportMeta, changes *types.ChangeSet) []byte {
	var b bytes.Buffer

	fmt.Fprintln(&b, "ASIN tax reconciliation")
	fmt.Fprintf(&b, "Run:       %s\n", meta.RunID)
	fmt.Fprintf(&b, "Generated: %s\n", meta.Generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Base:      %s\n", meta.BasePath)
	fmt.Fprintf(&b, "Report:    %s\n", meta.ReportPath)
	if meta.DryRun {
		fmt.Fprintln(&b, "Mode:      dry run, base not modified")
	}

	fmt.Fprintf(&b, "\nAdded (%d)\n", len(changes.Added))
	for _, a := range changes.Added {
		fmt.Fprintf(&b, "  %s  %s\n", a.Key, a.Flag)
	}

	fmt.Fprintf(&b, "Modified (%d)\n", len(changes.Modified))
	for _, m := range changes.Modified {
		fmt.Fprintf(&b, "  %s  %s -> %s\n", m.Key, m.Old, m.New)
	}

	fmt.Fprintf(&b, "Excluded, cancelled only (%d)\n", len(changes.CancelledOnly))
	for _, k := range changes.CancelledOnly {
		fmt.Fprintf(&b, "  %s\n", k)
	}

	removed, counts := duplicateCounts(changes.DuplicateKeysInBase)
	fmt.Fprintf(&b, "Removed base duplicates (%d)\n", len(removed))
	for _, k := range removed {
		fmt.Fprintf(&b, "  %s  x%d\n", k, counts[k])
	}

	fmt.Fprintf(&b, "Unchanged: %d\n", changes.Unchanged)
	return b.Bytes()
}

// duplicateCounts folds the duplicate occurrence list into distinct keys
// (first-seen order) and their occurrence counts.
func duplicateCounts(occurrences []string) ([]string, map[string]int) {
	counts := make(map[string]int)
	var keys []string
	for _, k := range occurrences {
		if counts[k] == 0 {
			keys = append(keys, k)
		}
		counts[k]++
	}
	return keys, counts
}
