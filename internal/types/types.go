// =============================================================================
// ASIN Tax Reconciler - Shared Types
// =============================================================================
//
// This package contains the domain types shared by the loaders, the
// reconciliation engine and the writers. Keeping them here avoids import
// cycles between:
//   - csvparser / xlsxparser (producers of Dataset)
//   - reconcile              (consumer and producer of Dataset + ChangeSet)
//   - csvwriter / xlsxwriter (consumers of Dataset)
//
// =============================================================================

package types

import (
	"strings"

	"github.com/tiendc/go-deepcopy"
)

// =============================================================================
// TAX FLAG
// =============================================================================

// TaxFlag is the tri-state tax classification of a product.
// Taxed and NotTaxed are the canonical values; any other value is an
// unrecognized flag carried verbatim from the base file.
type TaxFlag string

const (
	// Taxed marks a product that carries VAT.
	Taxed TaxFlag = "SI"

	// NotTaxed marks a product without VAT.
	NotTaxed TaxFlag = "NO"
)

// ParseTaxFlag maps the text of a base tax-status cell to a TaxFlag.
// Unrecognized text is kept verbatim (trimmed).
func ParseTaxFlag(raw string) TaxFlag {
	value := strings.TrimSpace(raw)
	switch strings.ToUpper(value) {
	case "SI", "SÍ", "S", "YES", "Y", "TRUE", "1":
		return Taxed
	case "NO", "N", "FALSE", "0":
		return NotTaxed
	}
	return TaxFlag(value)
}

// IsTaxed reports whether the flag is the canonical taxed value.
func (f TaxFlag) IsTaxed() bool { return f == Taxed }

// Recognized reports whether the flag is one of the two canonical values.
func (f TaxFlag) Recognized() bool { return f == Taxed || f == NotTaxed }

// String returns the text written to output files.
func (f TaxFlag) String() string { return string(f) }

// Merge combines two observations of the same identifier.
// Taxed wins; otherwise the existing flag is kept.
func (f TaxFlag) Merge(other TaxFlag) TaxFlag {
	if other.IsTaxed() {
		return Taxed
	}
	return f
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// NormalizeKey returns the canonical form of a product identifier.
func NormalizeKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// =============================================================================
// PRODUCT RECORD
// =============================================================================

// ProductRecord is one entry of the master dataset.
type ProductRecord struct {
	// Key is the canonical (upper-case) identifier.
	Key string

	// Display is the identifier text as first seen in its source.
	Display string

	// Flag is the consolidated tax flag.
	Flag TaxFlag

	// SKU is the seller SKU, when the source carries one.
	SKU string

	// Cells holds the original source row, padded to the header width.
	// It is nil for records created from a report observation.
	Cells []string

	// Raw is the source text of the row (delimited text bases only).
	Raw RawRow
}

// RawRow is the source text of one delimited row, without its line
// terminator.
type RawRow struct {
	Text string

	// FlagStart and FlagEnd delimit the tax-status field in Text, quotes
	// included. Both are -1 when the field cannot be located.
	FlagStart int
	FlagEnd   int
}

// HasFlagSpan reports whether the tax-status field was located.
func (r RawRow) HasFlagSpan() bool {
	return r.FlagStart >= 0 && r.FlagEnd >= r.FlagStart && r.FlagEnd <= len(r.Text)
}

// KeyText returns the text written to the identifier cell: the source cell
// for base records, the display form otherwise.
func (r *ProductRecord) KeyText(col int) string {
	if col >= 0 && col < len(r.Cells) {
		return r.Cells[col]
	}
	if r.Display != "" {
		return r.Display
	}
	return r.Key
}

// FlagText returns the text written to the tax-status cell: the source cell
// while it still reads as the record's flag, the canonical value otherwise.
func (r *ProductRecord) FlagText(col int) string {
	if col >= 0 && col < len(r.Cells) && ParseTaxFlag(r.Cells[col]) == r.Flag {
		return r.Cells[col]
	}
	return r.Flag.String()
}

// Clone returns a deep copy of the record. A nil Cells slice stays nil.
func (r *ProductRecord) Clone() *ProductRecord {
	var c ProductRecord
	if err := deepcopy.Copy(&c, r); err != nil {
		c = *r
		if r.Cells != nil {
			c.Cells = append([]string(nil), r.Cells...)
		}
	}
	return &c
}

// =============================================================================
// REPORT OBSERVATION
// =============================================================================

// ReportObservation is one row of the order report.
type ReportObservation struct {
	// Key is the canonical identifier; empty when the row has none.
	Key string

	// RawKey is the identifier text as it appears in the report.
	RawKey string

	// SKU is the seller SKU (empty when the report has no SKU column).
	SKU string

	// TaxAmount is the raw tax-amount field.
	TaxAmount string

	// Status is the raw order-status text.
	Status string

	// Line is the 1-based line number in the report file.
	Line int
}
