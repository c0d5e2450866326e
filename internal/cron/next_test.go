// next_test.go tests the matcher, the next-occurrence engine, and the
// occurrence iterator.
package cron

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, expr string) *Schedule {
	t.Helper()
	s, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expr, err)
	}
	return s
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test time %q: %v", value, err)
	}
	return ts
}

func TestMatches(t *testing.T) {
	tests := []struct {
		expr string
		time string
		want bool
	}{
		{"* * * * *", "2023-10-01T15:30:00Z", true},
		{"*/5 * * * *", "2023-10-01T15:30:00Z", true},
		{"*/5 * * * *", "2023-10-01T15:31:00Z", false},
		// 2023-10-01 is a Sunday.
		{"0 9 * * 0", "2023-10-01T09:00:00Z", true},
		{"0 9 * * 1-5", "2023-10-01T09:00:00Z", false},
		{"0 9 * * 1-5", "2023-10-02T09:00:00Z", true},
		{"0 0 1 * *", "2023-10-01T00:00:00Z", true},
		{"0 0 1 * *", "2023-10-02T00:00:00Z", false},
		{"5 0 30 Dec *", "2023-12-30T00:05:00Z", true},
		{"5 0 30 Dec *", "2023-11-30T00:05:00Z", false},
		// Seconds are ignored.
		{"30 15 * * *", "2023-10-01T15:30:45Z", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr+"@"+tt.time, func(t *testing.T) {
			s := mustParse(t, tt.expr)
			if got := s.Matches(at(t, tt.time)); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesWildcardAlways(t *testing.T) {
	s := mustParse(t, "* * * * *")
	ts := at(t, "2020-01-01T00:00:00Z")
	for i := 0; i < 5000; i++ {
		if !s.Matches(ts) {
			t.Fatalf("wildcard schedule rejected %v", ts)
		}
		ts = ts.Add(97 * time.Minute)
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		expr  string
		after string
		want  string
	}{
		// Strictly after the reference, even when the reference matches.
		{"* * * * *", "2023-10-01T00:00:00Z", "2023-10-01T00:01:00Z"},
		{"* * * * *", "2023-10-01T00:00:30Z", "2023-10-01T00:01:00Z"},
		{"5 0 * * *", "2023-10-01T00:00:00Z", "2023-10-01T00:05:00Z"},
		{"5 0 * * *", "2023-10-01T00:05:00Z", "2023-10-02T00:05:00Z"},
		// Minute wraps into the next hour.
		{"10,50 * * * *", "2023-10-01T00:55:00Z", "2023-10-01T01:10:00Z"},
		// Hour wraps into the next day and the minute falls back to its
		// smallest candidate.
		{"10,50 3 * * *", "2023-10-01T05:40:00Z", "2023-10-02T03:10:00Z"},
		// Day-of-week: next Monday after a Sunday.
		{"0 0 * * 1", "2023-10-01T00:00:00Z", "2023-10-02T00:00:00Z"},
		// Month scan keeps the already-valid time of day.
		{"5 0 30 Dec *", "2023-10-01T00:00:00Z", "2023-12-30T00:05:00Z"},
		// Year rollover.
		{"0 0 1 1 *", "2023-02-01T00:00:00Z", "2024-01-01T00:00:00Z"},
		// Leap day.
		{"0 0 29 2 *", "2023-01-01T00:00:00Z", "2024-02-29T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.expr+"@"+tt.after, func(t *testing.T) {
			s := mustParse(t, tt.expr)
			got, ok := s.Next(at(t, tt.after))
			if !ok {
				t.Fatal("Next reported no occurrence")
			}
			if want := at(t, tt.want); !got.Equal(want) {
				t.Errorf("Next = %v, want %v", got, want)
			}
		})
	}
}

func TestNextImpossible(t *testing.T) {
	tests := []struct {
		expr string
		ok   bool
	}{
		{"0 0 31 2 *", false},  // February 31st
		{"0 0 30 2 *", false},  // February 30th
		{"0 0 31 4 *", false},  // April 31st
		{"0 0 31 4,6,9,11 *", false},
		{"0 0 31 2,7 *", true}, // July rescues day 31
		{"0 0 30 4 *", true},
		{"0 0 29 2 *", true},   // leap years
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s := mustParse(t, tt.expr)
			_, ok := s.Next(at(t, "2023-10-01T00:00:00Z"))
			if ok != tt.ok {
				t.Errorf("Next ok = %v, want %v", ok, tt.ok)
			}
		})
	}
}

func TestUpcomingSequence(t *testing.T) {
	s := mustParse(t, "5 0 * * *")
	it := s.Upcoming(at(t, "2023-10-01T00:00:00Z"))

	want := []string{
		"2023-10-01T00:05:00Z",
		"2023-10-02T00:05:00Z",
		"2023-10-03T00:05:00Z",
	}
	for i, w := range want {
		got, ok := it.Next()
		if !ok {
			t.Fatalf("pull %d: iterator exhausted", i)
		}
		if !got.Equal(at(t, w)) {
			t.Errorf("pull %d = %v, want %v", i, got, w)
		}
	}
}

func TestUpcomingDecember(t *testing.T) {
	s := mustParse(t, "5 0 30 Dec *")
	it := s.Upcoming(at(t, "2023-10-01T00:00:00Z"))

	first, ok := it.Next()
	if !ok || !first.Equal(at(t, "2023-12-30T00:05:00Z")) {
		t.Fatalf("first = %v (%v), want 2023-12-30T00:05Z", first, ok)
	}
	second, ok := it.Next()
	if !ok || !second.Equal(at(t, "2024-12-30T00:05:00Z")) {
		t.Fatalf("second = %v (%v), want 2024-12-30T00:05Z", second, ok)
	}
}

func TestUpcomingMonotonicAndRoundTrip(t *testing.T) {
	exprs := []string{
		"* * * * *",
		"*/7 * * * *",
		"58,20-46/9,3 */2 * * *",
		"0 9 * * 1-5",
		"15 14 1 * *",
		"0 0 29 2 *",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			s := mustParse(t, expr)
			it := s.Upcoming(at(t, "2023-10-01T12:34:00Z"))
			var prev time.Time
			for i := 0; i < 50; i++ {
				got, ok := it.Next()
				if !ok {
					t.Fatalf("pull %d: unexpected exhaustion", i)
				}
				if !prev.IsZero() && !got.After(prev) {
					t.Fatalf("pull %d: %v not after %v", i, got, prev)
				}
				if !s.Matches(got) {
					t.Fatalf("pull %d: emitted %v does not match its own schedule", i, got)
				}
				prev = got
			}
		})
	}
}

func TestUpcomingExhaustionPermanent(t *testing.T) {
	s := mustParse(t, "0 0 31 2 *")
	it := s.Upcoming(at(t, "2023-10-01T00:00:00Z"))
	for i := 0; i < 3; i++ {
		if _, ok := it.Next(); ok {
			t.Fatalf("pull %d: impossible schedule produced a value", i)
		}
	}
}

func TestUpcomingDefaultSeed(t *testing.T) {
	s := mustParse(t, "* * * * *")
	before := time.Now()
	got, ok := s.Upcoming(time.Time{}).Next()
	if !ok {
		t.Fatal("iterator exhausted")
	}
	if !got.After(before) {
		t.Errorf("first occurrence %v not after seed time %v", got, before)
	}
	if got.Second() != 0 || got.Nanosecond() != 0 {
		t.Errorf("occurrence %v not aligned to the minute", got)
	}
}

func TestFormat(t *testing.T) {
	loc := time.FixedZone("", 3600)
	ts := time.Date(2023, 10, 1, 0, 5, 0, 0, loc)

	if got, want := FormatLocal(ts), "2023/10/01 00:05(+0100)"; got != want {
		t.Errorf("FormatLocal = %q, want %q", got, want)
	}
	if got, want := FormatUTC(ts), "2023/09/30 23:05(UTC)"; got != want {
		t.Errorf("FormatUTC = %q, want %q", got, want)
	}
}
