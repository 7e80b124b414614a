package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/types"
)

// ClassifyAmount maps a raw tax-amount field to a flag.
//
//   - empty                    -> NotTaxed
//   - number > 0               -> Taxed
//   - number <= 0              -> NotTaxed
//   - nan, -inf                -> NotTaxed
//   - inf                      -> Taxed
//   - non-empty, not a number  -> Taxed
//
// Commas are treated as thousands separators and removed before parsing.
// An unparseable marker is assumed to indicate a charge.
func ClassifyAmount(raw string) types.TaxFlag {
	s := strings.TrimSpace(raw)
	if s == "" {
		return types.NotTaxed
	}

	s = strings.ReplaceAll(s, ",", "")
	if flag, ok := classifySpecial(s); ok {
		return flag
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return types.Taxed
	}
	if amount.IsPositive() {
		return types.Taxed
	}
	return types.NotTaxed
}

// classifySpecial handles the non-finite spellings a float parse accepts:
// nan is not a charge, inf and infinity follow their sign.
func classifySpecial(s string) (types.TaxFlag, bool) {
	negative := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}
	switch strings.ToLower(s) {
	case "nan":
		return types.NotTaxed, true
	case "inf", "infinity":
		if negative {
			return types.NotTaxed, true
		}
		return types.Taxed, true
	}
	return "", false
}

// IsCancelled reports whether an order status marks the row as cancelled:
// "cancel" anywhere in the text, case-insensitive.
func IsCancelled(status string) bool {
	return strings.Contains(strings.ToLower(status), "cancel")
}
