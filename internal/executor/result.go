// result.go defines the outcome of one job invocation.
package executor

import "time"

// Result holds the captured output of a job run.
type Result struct {
	// ExitCode is the process exit code. -1 indicates timeout or signal death.
	ExitCode int `json:"exit_code"`

	// Stdout contains the standard output of the run.
	Stdout string `json:"stdout"`

	// Stderr contains the standard error output of the run.
	Stderr string `json:"stderr"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration_ms"`

	// TimedOut is true if the run was killed on timeout.
	TimedOut bool `json:"timed_out"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
}

// Success reports a clean zero exit without timeout.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// DurationMs returns the duration in milliseconds for reporting.
func (r *Result) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
