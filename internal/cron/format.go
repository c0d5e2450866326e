// format.go holds convenience helpers for callers that render or
// validate expressions; none of them participate in parsing or
// occurrence computation.
package cron

import "time"

// IsValid reports whether expr parses as a five-field cron expression.
func IsValid(expr string) bool {
	_, err := Parse(expr)
	return err == nil
}

// FormatLocal renders t in its own location with the UTC offset,
// e.g. "2023/10/01 00:05(+0100)".
func FormatLocal(t time.Time) string {
	return t.Format("2006/01/02 15:04(-0700)")
}

// FormatUTC renders t converted to UTC, e.g. "2023/09/30 23:05(UTC)".
func FormatUTC(t time.Time) string {
	return t.UTC().Format("2006/01/02 15:04") + "(UTC)"
}
