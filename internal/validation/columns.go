package validation

import "strings"

// =============================================================================
// HEADER NORMALIZATION
// =============================================================================

// NormalizeHeader canonicalizes a header cell for lookup: trimmed,
// lower-cased, with spaces and underscores mapped to "-".
//
// Examples:
//   "ASIN"          -> "asin"
//   " Item Tax "    -> "item-tax"
//   "order_status"  -> "order-status"
func NormalizeHeader(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	return strings.ReplaceAll(s, "_", "-")
}

// HeaderIndex maps normalized header names to their 0-based position.
// Blank headers are skipped; the first occurrence of a repeated name wins.
func HeaderIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if key == "" {
			continue
		}
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

// =============================================================================
// REQUIRED COLUMNS
// =============================================================================

// RequireColumns resolves every required column against the header.
//
// PARAMETERS:
//   - source:   Label used in the error message ("base", "report").
//   - header:   The raw header row.
//   - required: Column names; they are normalized before lookup.
//
// RETURNS:
//   - normalized name -> position for every required column.
//   - A *SchemaError naming every missing column, if any.
func RequireColumns(source string, header []string, required ...string) (map[string]int, error) {
	index := HeaderIndex(header)
	found := make(map[string]int, len(required))
	var missing []string

	for _, name := range required {
		key := NormalizeHeader(name)
		pos, ok := index[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		found[key] = pos
	}

	if len(missing) > 0 {
		return nil, &SchemaError{Source: source, Missing: missing}
	}
	return found, nil
}

// OptionalColumn returns the position of name, or -1.
func OptionalColumn(header []string, name string) int {
	if name == "" {
		return -1
	}
	if pos, ok := HeaderIndex(header)[NormalizeHeader(name)]; ok {
		return pos
	}
	return -1
}
