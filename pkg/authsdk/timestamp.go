package authsdk

import (
	"regexp"
	"time"
)

// Xbox authorities emit timestamps like 2024-01-02T03:04:05.6789123Z with
// seven fractional digits, which time.RFC3339 rejects. They are always UTC,
// so only the leading second-precision part is kept.
var timestampPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)

const timestampLayout = "2006-01-02T15:04:05"

// ParseTimestamp parses an Xbox authority timestamp, discarding fractional
// seconds and any zone suffix.
func ParseTimestamp(value string) (time.Time, error) {
	m := timestampPrefix.FindString(value)
	if m == "" {
		return time.Time{}, newAuthError(ErrMalformedResponse, "Unrecognized timestamp", nil)
	}

	t, err := time.ParseInLocation(timestampLayout, m, time.UTC)
	if err != nil {
		return time.Time{}, newAuthError(ErrMalformedResponse, "Unrecognized timestamp", err)
	}
	return t, nil
}
