// Package cron parses POSIX five-field cron expressions
// (minute hour day-of-month month day-of-week) and computes matching
// timestamps.
//
// Field syntax: *, N, A-B, lists of those joined by commas, and an
// optional /step suffix on any of them. Month and day-of-week accept
// case-insensitive three-letter names (JAN..DEC, SUN..SAT), and 7 is
// an alternate spelling of Sunday. @shortcuts, L, W, and # are not
// supported.
package cron

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Schedule holds the expanded value sets for each cron field. All five
// sets are sorted ascending, deduplicated, and non-empty. A Schedule is
// immutable once built by Parse.
type Schedule struct {
	Minute []int
	Hour   []int
	Dom    []int // day of month, 1-31
	Month  []int // 1-12
	Dow    []int // day of week, 0-6, 0=Sunday
}

// ErrFieldCount is returned (wrapped, with the actual count) when an
// expression does not split into exactly five fields.
var ErrFieldCount = errors.New("cron expression must have five fields")

// FieldError describes a malformed or out-of-domain cron field. Text is
// the offending substring exactly as it appeared in the expression.
type FieldError struct {
	Field  string // "minute", "hour", "day of month", "month", "day of week"
	Reason string // "out of range value", "invalid range", "invalid step value"
	Text   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s field contains %s '%s'", e.Field, e.Reason, e.Text)
}

const (
	reasonValue = "out of range value"
	reasonRange = "invalid range"
	reasonStep  = "invalid step value"
)

var monthNames = map[string]int{
	"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4,
	"MAY": 5, "JUN": 6, "JUL": 7, "AUG": 8,
	"SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
}

var dowNames = map[string]int{
	"SUN": 0, "MON": 1, "TUE": 2, "WED": 3,
	"THU": 4, "FRI": 5, "SAT": 6,
}

// Decimal literals; leading zeros are rejected so "03" cannot be
// mistaken for a valid value.
var (
	numberRe = regexp.MustCompile(`^(?:0|[1-9][0-9]*)$`)
	rangeRe  = regexp.MustCompile(`^(?:0|[1-9][0-9]*)-(?:0|[1-9][0-9]*)$`)
)

// Parse parses a five-field cron expression into a Schedule.
// Fields are parsed left to right and the first error wins.
func Parse(expr string) (*Schedule, error) {
	parts := strings.Fields(strings.TrimSpace(expr))
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w, got %d", ErrFieldCount, len(parts))
	}

	minute, err := parseField(parts[0], 0, 59, "minute")
	if err != nil {
		return nil, err
	}
	hour, err := parseField(parts[1], 0, 23, "hour")
	if err != nil {
		return nil, err
	}
	dom, err := parseField(parts[2], 1, 31, "day of month")
	if err != nil {
		return nil, err
	}
	month, err := parseField(substituteNames(parts[3], monthNames), 1, 12, "month")
	if err != nil {
		return nil, err
	}
	// Day of week parses over 0-7; 7 is normalized to Sunday below.
	dow, err := parseField(substituteNames(parts[4], dowNames), 0, 7, "day of week")
	if err != nil {
		return nil, err
	}

	return &Schedule{
		Minute: minute,
		Hour:   hour,
		Dom:    dom,
		Month:  month,
		Dow:    normalizeDow(dow),
	}, nil
}

// substituteNames replaces three-letter symbolic names in a raw field
// with their numeric equivalents before grammar parsing. The lookup is
// case-insensitive; field syntax characters are unaffected by the
// upper-casing.
func substituteNames(field string, names map[string]int) string {
	out := strings.ToUpper(field)
	for name, value := range names {
		out = strings.ReplaceAll(out, name, strconv.Itoa(value))
	}
	return out
}

// normalizeDow maps the alternate Sunday notation 7 to 0 and restores
// sorted, deduplicated order. A parsed set never stores 7.
func normalizeDow(vals []int) []int {
	seen := make(map[int]bool, len(vals))
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		if v == 7 {
			v = 0
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

// parseField parses one cron field into a sorted, deduplicated value
// set. Comma-separated parts are parsed independently and unioned.
func parseField(field string, min, max int, name string) ([]int, error) {
	var result []int
	seen := make(map[int]bool)

	for _, part := range strings.Split(field, ",") {
		vals, err := parsePart(part, min, max, name)
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			if !seen[v] {
				seen[v] = true
				result = append(result, v)
			}
		}
	}

	sort.Ints(result)
	return result, nil
}

// parsePart parses a single comma-separated part: a range expression
// with an optional /step suffix. The step keeps values divisible by it;
// a step that empties its sub-range is rejected so field sets stay
// non-empty.
func parsePart(part string, min, max int, name string) ([]int, error) {
	i := strings.IndexByte(part, '/')
	if i < 0 {
		return parseRange(part, min, max, name)
	}

	vals, err := parseRange(part[:i], min, max, name)
	if err != nil {
		return nil, err
	}

	stepText := part[i+1:]
	step, ok := parseStep(stepText)
	if !ok {
		return nil, &FieldError{Field: name, Reason: reasonStep, Text: stepText}
	}

	var kept []int
	for _, v := range vals {
		if v%step == 0 {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return nil, &FieldError{Field: name, Reason: reasonStep, Text: stepText}
	}
	return kept, nil
}

// parseStep parses a step suffix: digits only, positive.
func parseStep(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parseRange parses *, a bare value, or A-B into the values it covers.
func parseRange(text string, min, max int, name string) ([]int, error) {
	if text == "*" {
		return span(min, max), nil
	}
	if numberRe.MatchString(text) {
		v, _ := strconv.Atoi(text)
		if v < min || v > max {
			return nil, &FieldError{Field: name, Reason: reasonValue, Text: text}
		}
		return []int{v}, nil
	}
	if rangeRe.MatchString(text) {
		i := strings.IndexByte(text, '-')
		start, _ := strconv.Atoi(text[:i])
		end, _ := strconv.Atoi(text[i+1:])
		if start > end || start < min || end > max {
			return nil, &FieldError{Field: name, Reason: reasonRange, Text: text}
		}
		return span(start, end), nil
	}
	return nil, &FieldError{Field: name, Reason: reasonRange, Text: text}
}

func span(start, end int) []int {
	vals := make([]int, 0, end-start+1)
	for v := start; v <= end; v++ {
		vals = append(vals, v)
	}
	return vals
}

func contains(set []int, val int) bool {
	for _, v := range set {
		if v == val {
			return true
		}
	}
	return false
}
