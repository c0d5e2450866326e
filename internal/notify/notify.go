// Package notify reports completed job runs to external sinks: an HTTP
// webhook and/or a NATS subject. The scheduler talks to a single
// Notifier; fan-out and the always/failures filter live here.
package notify

import (
	"context"
	"errors"
	"time"
)

// Report is the JSON document sent for one completed run.
type Report struct {
	Job         string    `json:"job"`
	Host        string    `json:"host"`
	ScheduledAt time.Time `json:"scheduled_at"`
	StartedAt   time.Time `json:"started_at"`
	ExitCode    int       `json:"exit_code"`
	DurationMs  int64     `json:"duration_ms"`
	TimedOut    bool      `json:"timed_out"`
	Error       string    `json:"error,omitempty"`
}

// Failed reports whether the run should count as a failure for the
// "failures" notification filter.
func (r *Report) Failed() bool {
	return r.ExitCode != 0 || r.TimedOut || r.Error != ""
}

// Notifier delivers run reports.
type Notifier interface {
	NotifyRun(ctx context.Context, report *Report) error
}

// Multi fans a report out to several sinks, applying the configured
// filter first. Delivery errors are joined so one failing sink does
// not hide another.
type Multi struct {
	failuresOnly bool
	sinks        []Notifier
}

// NewMulti builds a fan-out notifier. mode is "always" or "failures"
// (validated by config). Nil sinks are skipped.
func NewMulti(mode string, sinks ...Notifier) *Multi {
	m := &Multi{failuresOnly: mode == "failures"}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// HasSinks reports whether any sink is configured.
func (m *Multi) HasSinks() bool {
	return len(m.sinks) > 0
}

// NotifyRun delivers the report to every sink, subject to the filter.
func (m *Multi) NotifyRun(ctx context.Context, report *Report) error {
	if m.failuresOnly && !report.Failed() {
		return nil
	}

	var errs []error
	for _, s := range m.sinks {
		if err := s.NotifyRun(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
