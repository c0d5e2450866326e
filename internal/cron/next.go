// next.go implements the next-occurrence search and the lazy iterator
// over upcoming matches.
package cron

import "time"

// Maximum day each month can reach; February at its leap-year maximum.
var monthDays = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Matches reports whether the schedule matches the given time,
// ignoring sub-minute precision.
func (s *Schedule) Matches(t time.Time) bool {
	return contains(s.Minute, t.Minute()) &&
		contains(s.Hour, t.Hour()) &&
		contains(s.Dom, t.Day()) &&
		contains(s.Month, int(t.Month())) &&
		contains(s.Dow, int(t.Weekday()))
}

// Next returns the first matching time strictly after `after`, in
// after's location. The second return is false when no such time can
// ever exist (a day-of-month the schedule's months never reach).
func (s *Schedule) Next(after time.Time) (time.Time, bool) {
	if !s.datePossible() {
		return time.Time{}, false
	}
	t := after.Truncate(time.Minute).Add(time.Minute)
	return s.nextDate(s.nextTime(t)), true
}

// datePossible rejects schedules whose smallest day-of-month exceeds
// the capacity of every candidate month. Only day 30 and 31 can
// conflict month-wide; day-of-week combinations always recur and need
// no check here.
func (s *Schedule) datePossible() bool {
	need := s.Dom[0]
	if need < 30 {
		return true
	}
	for _, m := range s.Month {
		if monthDays[m] >= need {
			return true
		}
	}
	return false
}

// nextTime advances t by the minimal non-negative offset to a valid
// minute, then to a valid hour. When the hour moves, the minute falls
// back to the smallest candidate; the result may land on a later day,
// which nextDate then validates.
func (s *Schedule) nextTime(t time.Time) time.Time {
	if d := forwardOffset(t.Minute(), s.Minute, 60); d > 0 {
		t = t.Add(time.Duration(d) * time.Minute)
	}
	if d := forwardOffset(t.Hour(), s.Hour, 24); d > 0 {
		t = t.Add(time.Duration(d) * time.Hour)
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), s.Minute[0], 0, 0, t.Location())
	}
	return t
}

// nextDate advances one calendar day at a time until day-of-month,
// month, and day-of-week all match. Skipped days restart at the
// smallest valid hour and minute. Termination is guaranteed by the
// datePossible pre-check.
func (s *Schedule) nextDate(t time.Time) time.Time {
	for !(contains(s.Dom, t.Day()) && contains(s.Month, int(t.Month())) && contains(s.Dow, int(t.Weekday()))) {
		t = time.Date(t.Year(), t.Month(), t.Day()+1, s.Hour[0], s.Minute[0], 0, 0, t.Location())
	}
	return t
}

// forwardOffset returns the smallest non-negative distance from
// current to a candidate, wrapping past the modulus to the first
// candidate when none lies ahead. Candidates are sorted ascending.
func forwardOffset(current int, candidates []int, modulus int) int {
	for _, c := range candidates {
		if c >= current {
			return c - current
		}
	}
	return candidates[0] + modulus - current
}

// Iterator produces the schedule's occurrences after a seed time, one
// per Next call, in strictly increasing order. It is single-use and
// not safe for concurrent callers; construct a new one to restart.
type Iterator struct {
	sched  *Schedule
	cursor time.Time
	done   bool
}

// Upcoming returns an iterator over occurrences strictly after `from`.
// A zero `from` seeds from the current time.
func (s *Schedule) Upcoming(from time.Time) *Iterator {
	if from.IsZero() {
		from = time.Now()
	}
	return &Iterator{sched: s, cursor: from}
}

// Next returns the next occurrence and true, or a zero time and false
// once the schedule is exhausted. Exhaustion is permanent.
func (it *Iterator) Next() (time.Time, bool) {
	if it.done {
		return time.Time{}, false
	}
	t, ok := it.sched.Next(it.cursor)
	if !ok {
		it.done = true
		return time.Time{}, false
	}
	it.cursor = t
	return t, true
}
