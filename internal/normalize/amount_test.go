package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	t.Run("nil is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, ParseAmount(nil))
	})

	t.Run("numeric inputs pass through", func(t *testing.T) {
		assert.Equal(t, 123.45, ParseAmount(123.45))
		assert.Equal(t, 42.0, ParseAmount(42))
		assert.Equal(t, 42.0, ParseAmount(int64(42)))
		assert.Equal(t, 12.5, ParseAmount(json.Number("12.5")))
	})

	t.Run("french display string", func(t *testing.T) {
		assert.Equal(t, 1234.56, ParseAmount("1 234,56 €"))
	})

	t.Run("plain numeric strings", func(t *testing.T) {
		assert.Equal(t, 500.0, ParseAmount("500"))
		assert.Equal(t, 99.9, ParseAmount("99.9"))
		assert.Equal(t, 99.9, ParseAmount("99,9"))
	})

	t.Run("thousands separators collapse to last dot", func(t *testing.T) {
		assert.Equal(t, 1234567.89, ParseAmount("1.234.567,89"))
		assert.Equal(t, 1234567.89, ParseAmount("1,234,567.89"))
	})

	t.Run("currency symbols stripped", func(t *testing.T) {
		assert.Equal(t, 120.0, ParseAmount("$120"))
		assert.Equal(t, 120.5, ParseAmount("120.50 EUR"))
	})

	t.Run("garbage degrades to zero", func(t *testing.T) {
		assert.Equal(t, 0.0, ParseAmount(""))
		assert.Equal(t, 0.0, ParseAmount("n/a"))
		assert.Equal(t, 0.0, ParseAmount([]string{"not", "a", "number"}))
		assert.Equal(t, 0.0, ParseAmount(json.Number("bogus")))
	})
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 100.0, Round2(120.0/1.2))
	assert.Equal(t, 0.1, Round2(0.1))
	assert.Equal(t, 1234.57, Round2(1234.567))
}
