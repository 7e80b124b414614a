package types

// Addition is a record appended by a reconciliation run.
type Addition struct {
	Key  string
	Flag TaxFlag
}

// Modification is a flag overwritten by a reconciliation run.
type Modification struct {
	Key string
	Old TaxFlag
	New TaxFlag
}

// ChangeSet describes what a reconciliation run did to the base dataset.
type ChangeSet struct {
	Added     []Addition
	Modified  []Modification
	Unchanged int

	// DuplicateKeysInBase is the multiset of duplicate occurrences found
	// while loading the base.
	DuplicateKeysInBase []string

	// CancelledOnly holds identifiers that appeared only in cancelled rows,
	// in first-seen order.
	CancelledOnly []string

	// FirstNewIndex is the offset of the first appended record in the
	// merged iteration order, or the pre-merge size when nothing was added.
	FirstNewIndex int

	Stats Stats
}

// Stats are the counters reported in the summary file.
type Stats struct {
	TotalReportRows       int
	CancelledRows         int
	CancelledKeys         int
	RowsWithoutKey        int
	DuplicateRows         int
	DuplicateKeys         []string
	UniqueReportKeys      int
	BaseRawRows           int
	BaseDuplicateRows     int
	BaseDuplicatesRemoved int
	BaseSizeBefore        int
	BaseSizeAfter         int
}
