// Package supervisetest provides in-memory host handles for exercising the
// monitor and the lifecycle guard without a real engine.
package supervisetest

import (
	"bytes"
	"sync"
	"time"

	"github.com/gxo-labs/logguard/pkg/logguard/v1/supervise"
)

// Output is an OutputHandle whose size can be driven by the test.
type Output struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	extra   uint64
	readErr error
	panicOn bool
}

// Write appends p to the captured output.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Write(p)
}

// Grow adds n bytes to the reported size without storing content.
func (o *Output) Grow(n uint64) {
	o.mu.Lock()
	o.extra += n
	o.mu.Unlock()
}

// FailReads makes CurrentOutputSize return err until called with nil.
func (o *Output) FailReads(err error) {
	o.mu.Lock()
	o.readErr = err
	o.mu.Unlock()
}

// PanicOnRead makes CurrentOutputSize panic.
func (o *Output) PanicOnRead(v bool) {
	o.mu.Lock()
	o.panicOn = v
	o.mu.Unlock()
}

// CurrentOutputSize implements supervise.OutputHandle.
func (o *Output) CurrentOutputSize() (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.panicOn {
		panic("size query exploded")
	}
	if o.readErr != nil {
		return 0, o.readErr
	}
	return uint64(o.buf.Len()) + o.extra, nil
}

// Text returns what was written.
func (o *Output) Text() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

// Interrupt records one call to Execution.Interrupt.
type Interrupt struct {
	Outcome supervise.Outcome
	Reason  string
}

// Execution is an ExecutionHandle recording every Interrupt call.
type Execution struct {
	mu          sync.Mutex
	terminating bool
	calls       []Interrupt
}

// SetTerminating simulates a termination started elsewhere.
func (e *Execution) SetTerminating(v bool) {
	e.mu.Lock()
	e.terminating = v
	e.mu.Unlock()
}

// IsAlreadyTerminating implements supervise.ExecutionHandle.
func (e *Execution) IsAlreadyTerminating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminating
}

// Interrupt implements supervise.ExecutionHandle. It records the call and,
// like a real host, marks the task as terminating.
func (e *Execution) Interrupt(outcome supervise.Outcome, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Interrupt{Outcome: outcome, Reason: reason})
	e.terminating = true
}

// Calls returns a copy of the recorded interrupts.
func (e *Execution) Calls() []Interrupt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Interrupt(nil), e.calls...)
}

// Scope is a supervise.Scope whose teardown is triggered by Close.
type Scope struct {
	mu        sync.Mutex
	callbacks []func()
	closed    bool
}

// OnTeardown implements supervise.Scope.
func (s *Scope) OnTeardown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Registered returns the number of registered callbacks.
func (s *Scope) Registered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.callbacks)
}

// Close runs the registered callbacks once, in registration order.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	callbacks := s.callbacks
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// Scheduler is a manual supervise.Scheduler: entries fire only when Tick is
// called.
type Scheduler struct {
	mu      sync.Mutex
	entries []*Entry
}

// Entry is one recurring registration on a Scheduler.
type Entry struct {
	InitialDelay time.Duration
	Period       time.Duration

	mu        sync.Mutex
	fn        func()
	cancelled bool
	cancels   int
}

// Cancel implements supervise.CancelToken.
func (e *Entry) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled = true
	e.cancels++
}

// Cancelled reports whether Cancel was called.
func (e *Entry) Cancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// CancelCalls returns the number of Cancel calls.
func (e *Entry) CancelCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}

// ScheduleRecurring implements supervise.Scheduler.
func (s *Scheduler) ScheduleRecurring(initialDelay, period time.Duration, fn func()) supervise.CancelToken {
	e := &Entry{InitialDelay: initialDelay, Period: period, fn: fn}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return e
}

// Entries returns all registrations, cancelled or not.
func (s *Scheduler) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Entry(nil), s.entries...)
}

// Active returns the number of entries not yet cancelled.
func (s *Scheduler) Active() int {
	n := 0
	for _, e := range s.Entries() {
		if !e.Cancelled() {
			n++
		}
	}
	return n
}

// Tick fires every live entry once.
func (s *Scheduler) Tick() {
	for _, e := range s.Entries() {
		e.mu.Lock()
		live := !e.cancelled
		e.mu.Unlock()
		if live {
			e.fn()
		}
	}
}

var (
	_ supervise.OutputHandle    = (*Output)(nil)
	_ supervise.ExecutionHandle = (*Execution)(nil)
	_ supervise.Scope           = (*Scope)(nil)
	_ supervise.Scheduler       = (*Scheduler)(nil)
)
