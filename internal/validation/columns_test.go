package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"ASIN", "asin"},
		{"  Item Tax ", "item-tax"},
		{"order_status", "order-status"},
		{"Order-Status", "order-status"},
		{"", ""},
		{"Order_ Status", "order--status"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeHeader(tt.in), "input %q", tt.in)
	}
}

func TestRequireColumns(t *testing.T) {
	t.Parallel()

	t.Run("resolves positions case-insensitively", func(t *testing.T) {
		t.Parallel()

		cols, err := RequireColumns("report", []string{"SKU", "ASIN", "Item_Tax", "Order Status"},
			"asin", "item-tax", "order-status")

		require.NoError(t, err)
		assert.Equal(t, map[string]int{"asin": 1, "item-tax": 2, "order-status": 3}, cols)
	})

	t.Run("names every missing column", func(t *testing.T) {
		t.Parallel()

		_, err := RequireColumns("report", []string{"asin"}, "asin", "item-tax", "order-status")

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSchema))

		var se *SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "report", se.Source)
		assert.Equal(t, []string{"item-tax", "order-status"}, se.Missing)
		assert.Contains(t, err.Error(), "item-tax, order-status")
	})

	t.Run("ignores blank headers", func(t *testing.T) {
		t.Parallel()

		index := HeaderIndex([]string{"asin", "", "iva", " "})

		assert.Equal(t, map[string]int{"asin": 0, "iva": 2}, index)
	})
}

func TestOptionalColumn(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, OptionalColumn([]string{"asin", "SKU"}, "sku"))
	assert.Equal(t, -1, OptionalColumn([]string{"asin"}, "sku"))
	assert.Equal(t, -1, OptionalColumn([]string{"asin"}, ""))
}

func TestSheetNotFoundError(t *testing.T) {
	t.Parallel()

	err := error(&SheetNotFoundError{Sheet: "Base", Available: []string{"Sheet1", "Data"}})

	assert.True(t, errors.Is(err, ErrSheetNotFound))
	assert.Contains(t, err.Error(), `"Base"`)
	assert.Contains(t, err.Error(), "Sheet1, Data")
}
