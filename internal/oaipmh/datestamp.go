package oaipmh

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Granularity is advertised by Identify.
	Granularity = "YYYY-MM-DDThh:mm:ssZ"

	TimeLayout = "2006-01-02T15:04:05Z"
	DateLayout = "2006-01-02"
)

// DateGranularity classifies a from/until argument.
type DateGranularity int

const (
	GranularityInvalid DateGranularity = iota
	GranularityDay
	GranularitySecond
)

// FormatTime renders a datestamp in UTC seconds granularity.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// GranularityOf reports whether s is date-only or a full timestamp.
func GranularityOf(s string) DateGranularity {
	if len(s) == len(DateLayout) {
		return GranularityDay
	}
	if strings.Index(s, "T") > 0 && strings.Index(s, "Z") > 0 {
		return GranularitySecond
	}
	return GranularityInvalid
}

// ParseDatestamp converts a from/until argument to an instant. Timezone
// markers are dropped and the value is read as repository time (UTC), so
// "2010-01-01T10:00:00Z" and "2010-01-01T10:00:00" are the same instant. A
// date-only value is placed at the start of the day, or its last second when
// endOfDay is set.
func ParseDatestamp(s string, endOfDay bool) (time.Time, error) {
	if len(s) == len(DateLayout) {
		t, err := time.ParseInLocation(DateLayout, s, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
		}
		if endOfDay {
			t = t.Add(24*time.Hour - time.Second)
		}
		return t, nil
	}

	normalized := strings.TrimSuffix(strings.Replace(s, "T", " ", 1), "Z")
	t, err := time.ParseInLocation("2006-01-02 15:04:05", normalized, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad datestamp %q: %w", s, err)
	}
	return t, nil
}

// TruncateToDay cuts a full timestamp down to its date part.
func TruncateToDay(s string) string {
	if len(s) > len(DateLayout) {
		return s[:len(DateLayout)]
	}
	return s
}
