// Package command runs external processes with their output streamed into
// a caller supplied writer.
package command

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Request describes one process invocation.
type Request struct {
	Command     string
	Args        []string
	WorkingDir  string
	Environment []string
	// Stdout and Stderr receive the process output as it is produced.
	// A nil writer discards that stream.
	Stdout io.Writer
	Stderr io.Writer
}

// Result holds the outcome of a process run.
type Result struct {
	// ExitCode is -1 when the process did not start or was killed.
	ExitCode int
	Duration time.Duration
	// Error is set for a non-zero exit; Run itself returns nil in that case.
	Error error
}

// Runner starts external processes.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

type defaultRunner struct {
	// waitDelay bounds how long Run waits for output pipes after the
	// process is killed.
	waitDelay time.Duration
}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() Runner {
	return &defaultRunner{waitDelay: 2 * time.Second}
}

func (r *defaultRunner) Run(ctx context.Context, req Request) (*Result, error) {
	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	cmd.Stdout = req.Stdout
	cmd.Stderr = req.Stderr
	cmd.WaitDelay = r.waitDelay
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	if len(req.Environment) > 0 {
		cmd.Env = append(os.Environ(), req.Environment...)
	}

	result := &Result{ExitCode: -1}
	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)

	if err == nil {
		result.ExitCode = 0
		return result, nil
	}
	if ctx.Err() != nil {
		result.Error = err
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.ExitCode = status.ExitStatus()
		}
		result.Error = err
		return result, nil
	}

	result.Error = err
	return result, err
}
