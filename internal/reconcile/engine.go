// =============================================================================
// ASIN Tax Reconciler - Reconciliation Engine
// =============================================================================
//
// This module merges the observations of one order report into the base
// dataset.
//
// RECONCILIATION STEPS:
//   1. Partition report rows: cancelled rows (excluded, identifier recorded),
//      rows without identifier (counted), candidate rows
//   2. Classify candidate rows and consolidate repeated identifiers
//      ("taxed wins")
//   3. Walk consolidated identifiers in first-seen order:
//        known, different flag  -> overwrite, record as modified
//        known, same flag       -> count as unchanged
//        unknown                -> append, record as added
//   4. Record the offset of the first appended record
//   5. Derive the identifiers that only appeared in cancelled rows
//
// The engine never fails: every input it accepts has already been validated
// by the loaders.
//
// =============================================================================

package reconcile

import (
	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
)

// consolidated is one report identifier after duplicate folding.
type consolidated struct {
	display string
	sku     string
	flag    types.TaxFlag
}

// Reconcile merges report into a copy of base.
//
// PARAMETERS:
//   - base:   The loaded base dataset. It is not modified.
//   - report: Report observations in file order.
//
// RETURNS:
//   - The merged dataset (base records first, new records appended).
//   - The change set describing the merge.
func Reconcile(base *types.Dataset, report []types.ReportObservation) (*types.Dataset, *types.ChangeSet) {
	merged := base.Clone()
	changes := &types.ChangeSet{
		DuplicateKeysInBase: append([]string(nil), base.Duplicates...),
	}
	stats := &changes.Stats
	stats.TotalReportRows = len(report)
	stats.BaseRawRows = base.RawRows
	stats.BaseDuplicateRows = len(base.Duplicates)
	stats.BaseDuplicatesRemoved = len(base.Duplicates) - len(distinct(base.Duplicates))
	stats.BaseSizeBefore = base.Len()

	// =========================================================================
	// STEP 1-2: PARTITION AND CONSOLIDATE
	// =========================================================================

	var (
		order         []string
		observed      = make(map[string]*consolidated)
		cancelled     []string
		cancelledSeen = make(map[string]bool)
		dupSeen       = make(map[string]bool)
	)

	for _, obs := range report {
		if IsCancelled(obs.Status) {
			stats.CancelledRows++
			if obs.Key != "" && !cancelledSeen[obs.Key] {
				cancelledSeen[obs.Key] = true
				cancelled = append(cancelled, obs.Key)
			}
			continue
		}

		if obs.Key == "" {
			stats.RowsWithoutKey++
			continue
		}

		flag := ClassifyAmount(obs.TaxAmount)

		if existing, ok := observed[obs.Key]; ok {
			stats.DuplicateRows++
			if !dupSeen[obs.Key] {
				dupSeen[obs.Key] = true
				stats.DuplicateKeys = append(stats.DuplicateKeys, obs.Key)
			}
			if flag.IsTaxed() && !existing.flag.IsTaxed() {
				existing.flag = types.Taxed
				if obs.SKU != "" {
					existing.sku = obs.SKU
				}
			}
			continue
		}

		observed[obs.Key] = &consolidated{display: obs.RawKey, sku: obs.SKU, flag: flag}
		order = append(order, obs.Key)
	}

	stats.CancelledKeys = len(cancelled)
	stats.UniqueReportKeys = len(order)

	// =========================================================================
	// STEP 3-4: MERGE
	// =========================================================================

	changes.FirstNewIndex = merged.Len()
	firstNew := -1

	for _, key := range order {
		obs := observed[key]

		if rec := merged.Get(key); rec != nil {
			if rec.Flag != obs.flag {
				changes.Modified = append(changes.Modified, types.Modification{
					Key: key,
					Old: rec.Flag,
					New: obs.flag,
				})
				rec.Flag = obs.flag
			} else {
				changes.Unchanged++
			}
			continue
		}

		idx := merged.Append(&types.ProductRecord{
			Key:     key,
			Display: obs.display,
			Flag:    obs.flag,
			SKU:     obs.sku,
		})
		if firstNew < 0 {
			firstNew = idx
		}
		changes.Added = append(changes.Added, types.Addition{Key: key, Flag: obs.flag})
	}

	if firstNew >= 0 {
		changes.FirstNewIndex = firstNew
	}
	stats.BaseSizeAfter = merged.Len()

	// =========================================================================
	// STEP 5: CANCELLED-ONLY IDENTIFIERS
	// =========================================================================

	for _, key := range cancelled {
		if _, valid := observed[key]; !valid {
			changes.CancelledOnly = append(changes.CancelledOnly, key)
		}
	}

	return merged, changes
}

// distinct returns the unique values of keys in first-seen order.
func distinct(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
