// Package supervise defines the contracts between the log size monitor and
// the host that runs tasks. The host owns every handle declared here; the
// monitor only holds references for the duration of one task run.
package supervise

import (
	"io"
	"time"
)

// Outcome is the terminal disposition assigned to a task that the monitor
// stops.
type Outcome string

const (
	// Aborted is the soft outcome, used when hard failure is not requested.
	Aborted Outcome = "Aborted"
	// Failed is the hard outcome.
	Failed Outcome = "Failed"
)

// OutcomeFor maps the hard-failure flag captured at attach time to an Outcome.
func OutcomeFor(hardFailure bool) Outcome {
	if hardFailure {
		return Failed
	}
	return Aborted
}

// OutputHandle is a task's growing output stream.
type OutputHandle interface {
	io.Writer
	// CurrentOutputSize returns the number of bytes written so far. It must
	// be cheap (metadata access, not a read of the content).
	CurrentOutputSize() (uint64, error)
}

// ExecutionHandle is the host's view of a running task.
type ExecutionHandle interface {
	// IsAlreadyTerminating reports whether termination has begun for any reason.
	IsAlreadyTerminating() bool
	// Interrupt requests termination with the given outcome. Hosts must
	// tolerate redundant calls: only the first one decides the outcome.
	Interrupt(outcome Outcome, reason string)
}

// Scope is the resource scope of one task run. Callbacks registered with
// OnTeardown are invoked exactly once when the scope closes, whatever the
// exit path.
type Scope interface {
	OnTeardown(fn func())
}

// CancelToken stops a recurring schedule. Cancel is idempotent; once it
// returns no new firing starts, although one already running may complete.
type CancelToken interface {
	Cancel()
}

// Scheduler runs recurring callbacks for many tasks on a shared timer.
// Successive firings of one entry never overlap.
type Scheduler interface {
	ScheduleRecurring(initialDelay, period time.Duration, fn func()) CancelToken
}

// TaskSettings are the three per-task values captured when a task is defined.
type TaskSettings struct {
	// MaxLogSize is the per-task threshold in MB. Zero or negative disables
	// monitoring when SetOwn is true.
	MaxLogSize int32 `yaml:"max_log_size" json:"max_log_size"`
	// FailBuild selects Failed instead of Aborted when the threshold is crossed.
	FailBuild bool `yaml:"fail_build" json:"fail_build"`
	// SetOwn makes MaxLogSize take precedence over the global default.
	SetOwn bool `yaml:"set_own" json:"set_own"`
}
