package discussion

import (
	"fmt"
	"regexp"
	"time"
)

// Signature timestamps look like "09:00, 20 May 2021 (UTC)".
var timestampRE = regexp.MustCompile(`\d\d:\d\d, \d?\d \w+ \d\d\d\d \(UTC\)`)

const timestampLayout = "15:04, 2 January 2006 (UTC)"

// FindTimestamps returns every signature timestamp in text, unparsed, in the
// order they appear.
func FindTimestamps(text string) []string {
	return timestampRE.FindAllString(text, -1)
}

// ExtractTimestamps parses the first n signature timestamps in text as UTC.
// Matches past the first n are never parsed, so a garbled later signature
// cannot fail the call. Fewer than n are returned when text has fewer.
func ExtractTimestamps(text string, n int) ([]time.Time, error) {
	matches := FindTimestamps(text)
	if len(matches) > n {
		matches = matches[:n]
	}
	out := make([]time.Time, 0, len(matches))
	for _, m := range matches {
		ts, err := ParseTimestamp(m)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, nil
}

// ParseTimestamp parses a single signature timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(timestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return ts, nil
}
