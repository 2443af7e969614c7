package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	t.Run("canonical form passes through", func(t *testing.T) {
		got, ok := ParseDate("2024-03-05")
		assert.True(t, ok)
		assert.Equal(t, "2024-03-05", got)
	})

	t.Run("iso with time is truncated", func(t *testing.T) {
		got, ok := ParseDate("2024-03-05T10:00:00Z")
		assert.True(t, ok)
		assert.Equal(t, "2024-03-05", got)

		got, ok = ParseDate("2024-03-05T10:00:00.123+02:00")
		assert.True(t, ok)
		assert.Equal(t, "2024-03-05", got)

		got, ok = ParseDate("2024-03-05 10:00:00")
		assert.True(t, ok)
		assert.Equal(t, "2024-03-05", got)
	})

	t.Run("slash date with 4-digit year reads as DD/MM", func(t *testing.T) {
		got, ok := ParseDate("05/03/2024")
		assert.True(t, ok)
		assert.Equal(t, "2024-03-05", got)

		got, ok = ParseDate("15/01/2024")
		assert.True(t, ok)
		assert.Equal(t, "2024-01-15", got)
	})

	t.Run("unambiguous slash date falls back to MM/DD", func(t *testing.T) {
		// Day 15 cannot be a month, so the MM/DD attempt fails and DD/MM wins.
		got, ok := ParseDate("01/15/2024")
		assert.True(t, ok)
		assert.Equal(t, "2024-01-15", got)
	})

	t.Run("dash-delimited regional dates", func(t *testing.T) {
		got, ok := ParseDate("15-01-2024")
		assert.True(t, ok)
		assert.Equal(t, "2024-01-15", got)
	})

	t.Run("unix timestamps", func(t *testing.T) {
		ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC).Unix()

		got, ok := ParseDate(float64(ts))
		assert.True(t, ok)
		assert.Equal(t, "2024-01-15", got)

		got, ok = ParseDate("1705320000")
		assert.True(t, ok)
		assert.Equal(t, "2024-01-15", got)

		// Millisecond-precision string.
		got, ok = ParseDate("1705320000000")
		assert.True(t, ok)
		assert.Equal(t, "2024-01-15", got)
	})

	t.Run("unparseable input fails cleanly", func(t *testing.T) {
		for _, in := range []interface{}{"not a date", "", nil, "99/99/9999"} {
			got, ok := ParseDate(in)
			assert.False(t, ok, "input %v", in)
			assert.Empty(t, got)
		}
	})
}
