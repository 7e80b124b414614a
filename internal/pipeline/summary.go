package pipeline

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ginjaninja78/asin-tax-reconciler/pkg/utils"
)

// SummaryProperties renders the key/value summary of a successful run.
// Keys appear in a fixed order; workbook keys are only present when the
// consistency layer ran.
func SummaryProperties(r Result) []utils.Property {
	props := []utils.Property{
		{Key: "ok", Value: strconv.FormatBool(r.Success)},
		{Key: "run_id", Value: r.RunID},
		{Key: "dry_run", Value: strconv.FormatBool(r.DryRun)},
	}
	c := r.Changes
	if c == nil {
		return props
	}
	s := c.Stats

	dupKeys := append([]string(nil), s.DuplicateKeys...)
	sort.Strings(dupKeys)

	num := func(key string, n int) utils.Property {
		return utils.Property{Key: key, Value: strconv.Itoa(n)}
	}
	props = append(props,
		num("total_report_rows", s.TotalReportRows),
		num("duplicate_rows", s.DuplicateRows),
		num("duplicate_keys", len(s.DuplicateKeys)),
		num("cancelled_rows", s.CancelledRows),
		num("cancelled_keys", s.CancelledKeys),
		num("cancelled_only_keys", len(c.CancelledOnly)),
		num("rows_without_identifier", s.RowsWithoutKey),
		num("unique_report_keys", s.UniqueReportKeys),
		num("added", len(c.Added)),
		num("modified", len(c.Modified)),
		num("unchanged", c.Unchanged),
		num("base_duplicate_rows", s.BaseDuplicateRows),
		num("base_duplicates_removed", s.BaseDuplicatesRemoved),
		num("base_size_before", s.BaseSizeBefore),
		num("base_size_after", s.BaseSizeAfter),
		num("preview_start_offset", c.FirstNewIndex),
		utils.Property{Key: "duplicate_keys_list", Value: strings.Join(dupKeys, ",")},
	)

	if wb := r.Workbook; wb != nil {
		props = append(props,
			utils.Property{Key: "workbook_tier", Value: string(wb.Tier)},
			num("workbook_warnings", len(wb.Warnings)),
			utils.Property{Key: "workbook_log", Value: wb.LogPath},
		)
	}
	return props
}
