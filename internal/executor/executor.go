// executor.go runs one job invocation: a shell command line or inline
// script content through an interpreter, with a timeout and process
// group management so no children outlive a killed job.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Spec describes one invocation. Exactly one of Command or Script is
// set; config validation enforces that before a Spec is built.
type Spec struct {
	// JobName is exported to the child as CRONRUN_JOB.
	JobName string

	// ScheduledAt is the occurrence being honored, exported as
	// CRONRUN_SCHEDULED_AT (RFC3339).
	ScheduledAt time.Time

	// Command is a shell command line, run via the shell's -c.
	Command string

	// Script is inline content piped to Interpreter's stdin.
	Script string

	// Interpreter names an allowlisted interpreter for Script.
	Interpreter string

	// Timeout bounds the run; the whole process group is killed on
	// expiry.
	Timeout time.Duration
}

// Executor runs job invocations.
type Executor struct {
	// Shell runs Command specs. Default: /bin/sh.
	Shell string
}

// New creates an Executor with default settings.
func New() *Executor {
	return &Executor{Shell: "/bin/sh"}
}

// Run executes the spec and returns its Result. An error return means
// the process could not be started at all (bad interpreter, exec
// failure); timeouts and non-zero exits are reported in the Result.
func (e *Executor) Run(ctx context.Context, spec Spec) (*Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	var cmd *exec.Cmd
	if spec.Script != "" {
		path, err := VerifyInterpreter(spec.Interpreter)
		if err != nil {
			return nil, err
		}
		cmd = exec.CommandContext(execCtx, path)
		cmd.Stdin = strings.NewReader(spec.Script)
	} else {
		cmd = exec.CommandContext(execCtx, e.Shell, "-c", spec.Command)
	}

	cmd.Env = append(os.Environ(),
		"CRONRUN_JOB="+spec.JobName,
		"CRONRUN_SCHEDULED_AT="+spec.ScheduledAt.Format(time.RFC3339),
	)

	// New process group so the timeout kill reaches all children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := &Result{StartedAt: time.Now()}
	err := cmd.Run()
	result.Duration = time.Since(result.StartedAt)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			result.ExitCode = -1
			result.TimedOut = true
			return result, nil
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("execution failed: %w", err)
	}

	result.ExitCode = 0
	return result, nil
}
