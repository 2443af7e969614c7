package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	canonicalDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	allDigitsRe     = regexp.MustCompile(`^\d+$`)
)

// slash-delimited dates are ambiguous; the year-segment-length heuristic below
// assumes DD/MM when the third segment is a 4-digit year (French convention).
// A US-style MM/DD/YYYY date therefore misparses; there is no way to tell the
// two apart without an explicit locale.
var dashLayouts = []string{"02-01-2006", "01-02-2006"}

// ParseDate converts a heterogeneous date representation into the canonical
// YYYY-MM-DD form. The second return is false when no strategy applied;
// callers substitute the current date and flag the record.
func ParseDate(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case time.Time:
		return v.Format(dateLayout), true
	case float64:
		return fromEpoch(int64(v)), true
	case int:
		return fromEpoch(int64(v)), true
	case int64:
		return fromEpoch(v), true
	case string:
		return parseDateString(v)
	default:
		return parseDateString(fmt.Sprintf("%v", value))
	}
}

func parseDateString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if canonicalDateRe.MatchString(s) {
		return s, true
	}

	// Unix timestamp, seconds or milliseconds depending on magnitude.
	if allDigitsRe.MatchString(s) && len(s) >= 10 {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			if len(s) >= 13 {
				n /= 1000
			}
			return fromEpoch(n), true
		}
	}

	// ISO with time portion: truncate to the date part.
	if idx := strings.IndexByte(s, 'T'); idx > 0 {
		s = s[:idx]
	} else if idx := strings.IndexByte(s, ' '); idx > 0 && strings.Contains(s[idx:], ":") {
		s = s[:idx]
	}
	if canonicalDateRe.MatchString(s) {
		return s, true
	}

	if strings.Contains(s, "/") {
		return parseSlashDate(s)
	}

	for _, layout := range dashLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), true
		}
	}
	return "", false
}

func parseSlashDate(s string) (string, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return "", false
	}
	layouts := []string{"01/02/2006", "02/01/2006"}
	if len(parts[2]) == 4 {
		// 4-digit year: assume DD/MM/YYYY first.
		layouts = []string{"02/01/2006", "01/02/2006"}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), true
		}
	}
	return "", false
}

func fromEpoch(sec int64) string {
	// Defend against millisecond epochs arriving as numbers.
	if sec > 1e12 {
		sec /= 1000
	}
	return time.Unix(sec, 0).UTC().Format(dateLayout)
}
