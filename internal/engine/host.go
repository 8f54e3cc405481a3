package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/supervise"
	"github.com/spf13/afero"
)

// taskOutput is a task's log file. Steps and the monitor notice share it,
// so writes are serialized.
type taskOutput struct {
	mu   sync.Mutex
	file afero.File
	path string
}

func openTaskOutput(fs afero.Fs, path string) (*taskOutput, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open task log %s: %w", path, err)
	}
	return &taskOutput{file: f, path: path}, nil
}

func (o *taskOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file.Write(p)
}

// CurrentOutputSize reads the size from file metadata.
func (o *taskOutput) CurrentOutputSize() (uint64, error) {
	info, err := o.file.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

func (o *taskOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file.Close()
}

var _ supervise.OutputHandle = (*taskOutput)(nil)
var _ io.Closer = (*taskOutput)(nil)

const (
	execRunning int32 = iota
	execInterrupted
	execFinished
)

// taskExecution is the host side of a running task. The first Interrupt
// wins and cancels the task context with an InterruptedError cause; once
// the steps have returned, interrupts are ignored.
type taskExecution struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	state  atomic.Int32

	mu      sync.Mutex
	outcome supervise.Outcome
	reason  string
}

func newTaskExecution(parent context.Context) *taskExecution {
	ctx, cancel := context.WithCancelCause(parent)
	return &taskExecution{ctx: ctx, cancel: cancel}
}

func (x *taskExecution) Context() context.Context { return x.ctx }

func (x *taskExecution) IsAlreadyTerminating() bool {
	return x.state.Load() != execRunning || x.ctx.Err() != nil
}

func (x *taskExecution) Interrupt(outcome supervise.Outcome, reason string) {
	if !x.state.CompareAndSwap(execRunning, execInterrupted) {
		return
	}
	x.mu.Lock()
	x.outcome = outcome
	x.reason = reason
	x.mu.Unlock()
	x.cancel(lgerrors.NewInterruptedError(string(outcome), reason))
}

// finish marks the steps as done. It reports false if an interrupt got there first.
func (x *taskExecution) finish() bool {
	return x.state.CompareAndSwap(execRunning, execFinished)
}

// Interrupted returns the recorded outcome and reason, if any.
func (x *taskExecution) Interrupted() (supervise.Outcome, string, bool) {
	if x.state.Load() != execInterrupted {
		return "", "", false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.outcome, x.reason, true
}

// release frees the context resources.
func (x *taskExecution) release() {
	x.cancel(nil)
}

var _ supervise.ExecutionHandle = (*taskExecution)(nil)

// taskScope runs teardown callbacks once, newest first. A callback
// registered after Close runs immediately.
type taskScope struct {
	mu        sync.Mutex
	callbacks []func()
	closed    bool
}

func (s *taskScope) OnTeardown(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.callbacks = append(s.callbacks, fn)
	s.mu.Unlock()
}

func (s *taskScope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	callbacks := s.callbacks
	s.callbacks = nil
	s.mu.Unlock()

	for i := len(callbacks) - 1; i >= 0; i-- {
		callbacks[i]()
	}
}

var _ supervise.Scope = (*taskScope)(nil)
