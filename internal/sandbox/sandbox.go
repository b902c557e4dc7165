// Package sandbox runs coverage drivers in an isolated child process with a
// wall-clock timeout and an address-space cap. The child gets its own
// process group so a timeout kills everything it spawned.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/vk/seedgrid/internal/ctxlog"
	"golang.org/x/sys/unix"
)

// SanitizerExitCode is the exit status AddressSanitizer is configured to
// use, so sanitizer reports can be told apart from ordinary failures.
const SanitizerExitCode = 168

// DefaultASanOptions is exported to every child unless Env overrides it.
const DefaultASanOptions = "exitcode=168:detect_leaks=1:abort_on_error=0:symbolize=0"

const defaultMaxOutput = 1 << 20

// Runner executes one command per Run call.
type Runner struct {
	// Timeout bounds the wall-clock time of a run. Zero means no limit.
	Timeout time.Duration
	// MemoryLimitMB caps the child's address space. Zero means no cap. A
	// capped child starts through ExecLimited in the current executable.
	// Sanitizer builds reserve large shadow mappings and need a generous cap.
	MemoryLimitMB int
	// Env is appended to the parent's environment.
	Env []string
	// MaxOutputBytes truncates captured stdout and stderr each.
	MaxOutputBytes int
}

// Result describes a finished child.
type Result struct {
	ExitCode int
	Signal   string
	TimedOut bool
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// ExecutionCrash reports a child that was killed by a signal, tripped a
// sanitizer or ran out of time.
type ExecutionCrash struct {
	Reason   string
	Signal   string
	ExitCode int
	// Summary is the first sanitizer SUMMARY or ERROR line on stderr.
	Summary string
}

// Error implements the error interface.
func (e *ExecutionCrash) Error() string {
	return "execution crashed: " + e.Signature()
}

// Signature is a short stable description used to group crashes.
func (e *ExecutionCrash) Signature() string {
	sig := e.Reason
	switch {
	case e.Signal != "":
		sig += " " + e.Signal
	case e.Reason != "timeout":
		sig += fmt.Sprintf(" %d", e.ExitCode)
	}
	if e.Summary != "" {
		sig += ": " + e.Summary
	}
	return sig
}

// ExitStatusError reports a child that exited with a failure status other
// than SanitizerExitCode. The child ran to completion, so this is the
// command failing (e.g. a driver that cannot build the seed), not a crash.
type ExitStatusError struct {
	ExitCode int
	// Message is the last non-empty line the child wrote to stderr.
	Message string
}

func (e *ExitStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("exited with status %d: %s", e.ExitCode, e.Message)
}

// Run executes name with args. A crash is returned as *ExecutionCrash and
// any other failure status as *ExitStatusError, both together with the
// Result; failing to start the process is a plain error.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	max := r.MaxOutputBytes
	if max <= 0 {
		max = defaultMaxOutput
	}
	stdout := &limitedBuffer{max: max}
	stderr := &limitedBuffer{max: max}

	path, argv, env := name, args, r.environ()
	if r.MemoryLimitMB > 0 {
		var extra []string
		var err error
		if path, argv, extra, err = wrap(r.MemoryLimitMB, name, args); err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", name, err)
		}
		env = append(env, extra...)
	}

	cmd := exec.CommandContext(runCtx, path, argv...)
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return killGroup(cmd) }
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	waitErr := cmd.Wait()

	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
		if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			res.Signal = unix.SignalName(ws.Signal())
		}
	}
	res.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	crash := classify(res)
	if crash == nil && waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, waitErr
		}
		failed := &ExitStatusError{ExitCode: res.ExitCode, Message: lastLine(res.Stderr)}
		logger.Debug("Child process failed.", "command", name, "error", failed, "duration", res.Duration)
		return res, failed
	}
	if crash != nil {
		logger.Debug("Child process crashed.", "command", name, "signature", crash.Signature(), "duration", res.Duration)
		return res, crash
	}
	logger.Debug("Child process finished.", "command", name, "duration", res.Duration)
	return res, nil
}

func (r *Runner) environ() []string {
	env := os.Environ()
	hasASan := false
	for _, kv := range r.Env {
		if strings.HasPrefix(kv, "ASAN_OPTIONS=") {
			hasASan = true
		}
	}
	if !hasASan {
		env = append(env, "ASAN_OPTIONS="+DefaultASanOptions)
	}
	return append(env, r.Env...)
}

// classify turns a finished run into a crash, or nil for a clean exit.
func classify(res *Result) *ExecutionCrash {
	summary := sanitizerSummary(res.Stderr)
	switch {
	case res.TimedOut:
		return &ExecutionCrash{Reason: "timeout", Signal: res.Signal, ExitCode: res.ExitCode}
	case res.Signal != "":
		return &ExecutionCrash{Reason: "signal", Signal: res.Signal, ExitCode: res.ExitCode, Summary: summary}
	case res.ExitCode == SanitizerExitCode:
		return &ExecutionCrash{Reason: "sanitizer", ExitCode: res.ExitCode, Summary: summary}
	}
	return nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func sanitizerSummary(stderr []byte) string {
	var errLine string
	for _, line := range strings.Split(string(stderr), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "SUMMARY:") {
			return line
		}
		if errLine == "" && strings.HasPrefix(line, "==") && strings.Contains(line, "ERROR:") {
			errLine = line[strings.Index(line, "ERROR:"):]
		}
	}
	return errLine
}

// killGroup sends SIGKILL to the child's whole process group.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if pgid, err := unix.Getpgid(cmd.Process.Pid); err == nil && pgid > 0 {
		if err := unix.Kill(-pgid, unix.SIGKILL); err == nil {
			return nil
		}
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte { return b.buf.Bytes() }
