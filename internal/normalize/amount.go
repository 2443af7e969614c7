package normalize

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a heterogeneous monetary value into a float64. Sellsy
// payloads carry amounts as numbers, numeric strings, or display strings with
// currency symbols and French separators ("1 234,56 €"). The function is
// total: every failure path degrades to 0.0.
func ParseAmount(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0.0
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0.0
		}
		return f
	case string:
		return parseAmountString(v)
	default:
		return 0.0
	}
}

func parseAmountString(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ",", ".")
	if cleaned == "" {
		return 0.0
	}

	// More than one dot: everything but the last is a thousands separator.
	if strings.Count(cleaned, ".") > 1 {
		segments := strings.Split(cleaned, ".")
		last := segments[len(segments)-1]
		cleaned = strings.Join(segments[:len(segments)-1], "") + "." + last
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0.0
	}
	return f
}

// Round2 rounds a monetary amount to 2 decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
