// Package runner wraps external command invocation with a hard timeout,
// bounded output capture and process-group cleanup. It is the single place
// in the service that knows about process trees and timeouts.
package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/printforge/printforge-go-components/internal/slicingservice/config"
	"github.com/printforge/printforge-go-components/internal/slicingservice/logger"
)

// Result carries the captured output of a successful command.
type Result struct {
	Stdout string
	Stderr string
}

// CommandError is the failure of an external command. TimedOut
// distinguishes a process killed by the runner from one that signaled
// failure itself.
type CommandError struct {
	Command  string
	Output   string
	TimedOut bool
	Err      error
}

func (e *CommandError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("command timed out: %s", e.Command)
	}
	return fmt.Sprintf("command failed: %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner executes external commands under the service's subprocess policy.
type Runner struct {
	Timeout        time.Duration
	MaxOutputBytes int
	Debug          bool
}

// New creates a runner with the service defaults. Command echoing to the
// console is gated by the debug flag.
func New(debug bool) *Runner {
	return &Runner{
		Timeout:        config.SubprocessTimeout,
		MaxOutputBytes: config.MaxCapturedOutputBytes,
		Debug:          debug,
	}
}

// Run executes the command and captures its output. The whole process group
// is killed when the timeout expires so converter-spawned children (slicer
// GUI libraries are notorious for these) cannot linger.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	commandLine := name + " " + strings.Join(args, " ")
	if r.Debug {
		logger.LogDebug("exec: " + commandLine)
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid addresses the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout := newBoundedBuffer(r.MaxOutputBytes)
	stderr := newBoundedBuffer(r.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err != nil {
		timedOut := runCtx.Err() == context.DeadlineExceeded
		return nil, &CommandError{
			Command:  commandLine,
			Output:   mergedErrorText(stderr.String(), stdout.String()),
			TimedOut: timedOut,
			Err:      err,
		}
	}
	return &Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// mergedErrorText prefers stderr and falls back to stdout, since several
// converters report their failures on stdout only.
func mergedErrorText(stderr, stdout string) string {
	if strings.TrimSpace(stderr) != "" {
		return stderr
	}
	return stdout
}

// boundedBuffer captures up to max bytes and silently discards the rest.
type boundedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
	max int
}

func newBoundedBuffer(max int) *boundedBuffer {
	return &boundedBuffer{max: max}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.max - b.buf.Len()
	if remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	// Report everything as written; truncation is not an error.
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
