// Package v1 is the public surface of the logguard job engine.
package v1

import (
	"context"
	"runtime"
	"time"

	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/events"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/metrics"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/plugin"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/settings"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/supervise"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/tracing"
	"github.com/spf13/afero"
)

// Task and job statuses.
const (
	StatusPending   = "Pending"
	StatusRunning   = "Running"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
	StatusAborted   = "Aborted"
)

// EngineV1 runs jobs whose tasks are supervised for log size.
type EngineV1 interface {
	// RunJob executes a job from its raw YAML content. The report is
	// returned even when the job fails.
	RunJob(ctx context.Context, jobYAML []byte) (*JobReport, error)

	MetricsRegistryProvider() metrics.RegistryProvider
	TracerProvider() tracing.TracerProvider

	SetSettingsStore(store settings.Store) error
	SetEventBus(bus events.Bus) error
	SetModuleRegistry(registry plugin.Registry) error
	SetMetricsRegistryProvider(provider metrics.RegistryProvider) error
	SetTracerProvider(provider tracing.TracerProvider) error
	SetScheduler(scheduler supervise.Scheduler) error
	SetFilesystem(fs afero.Fs) error
	SetLogDir(dir string) error
	SetCheckCadence(initialDelay, period time.Duration) error
	SetDefaultTimeout(timeout time.Duration) error
	SetWorkerPoolSize(size int) error
}

// EngineOption configures an engine at creation.
type EngineOption func(EngineV1) error

// TaskResult is the final outcome of one task.
type TaskResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	// Outcome and Reason are set when the log size monitor interrupted the task.
	Outcome     string        `json:"outcome,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	LogPath     string        `json:"log_path"`
	LogBytes    uint64        `json:"log_bytes"`
	ThresholdMB int32         `json:"threshold_mb"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Duration    time.Duration `json:"duration"`
}

// JobReport summarises a completed job run.
type JobReport struct {
	RunID          string                `json:"run_id"`
	JobName        string                `json:"job_name"`
	OverallStatus  string                `json:"overall_status"`
	StartTime      time.Time             `json:"start_time"`
	EndTime        time.Time             `json:"end_time"`
	Duration       time.Duration         `json:"duration"`
	TotalTasks     int                   `json:"total_tasks"`
	CompletedTasks int                   `json:"completed_tasks"`
	FailedTasks    int                   `json:"failed_tasks"`
	AbortedTasks   int                   `json:"aborted_tasks"`
	Error          string                `json:"error,omitempty"`
	TaskResults    map[string]TaskResult `json:"task_results"`
}

func WithSettingsStore(store settings.Store) EngineOption {
	return func(e EngineV1) error {
		if store == nil {
			return lgerrors.NewConfigError("settings store cannot be nil", nil)
		}
		return e.SetSettingsStore(store)
	}
}

func WithEventBus(bus events.Bus) EngineOption {
	return func(e EngineV1) error {
		if bus == nil {
			return lgerrors.NewConfigError("event bus cannot be nil", nil)
		}
		return e.SetEventBus(bus)
	}
}

func WithModuleRegistry(registry plugin.Registry) EngineOption {
	return func(e EngineV1) error {
		if registry == nil {
			return lgerrors.NewConfigError("module registry cannot be nil", nil)
		}
		return e.SetModuleRegistry(registry)
	}
}

func WithMetricsRegistryProvider(provider metrics.RegistryProvider) EngineOption {
	return func(e EngineV1) error {
		if provider == nil {
			return lgerrors.NewConfigError("metrics registry provider cannot be nil", nil)
		}
		return e.SetMetricsRegistryProvider(provider)
	}
}

func WithTracerProvider(provider tracing.TracerProvider) EngineOption {
	return func(e EngineV1) error {
		if provider == nil {
			return lgerrors.NewConfigError("tracer provider cannot be nil", nil)
		}
		return e.SetTracerProvider(provider)
	}
}

// WithScheduler replaces the engine's own timer service. The caller keeps
// ownership of the scheduler's lifetime.
func WithScheduler(scheduler supervise.Scheduler) EngineOption {
	return func(e EngineV1) error {
		if scheduler == nil {
			return lgerrors.NewConfigError("scheduler cannot be nil", nil)
		}
		return e.SetScheduler(scheduler)
	}
}

// WithFilesystem sets where task logs are written. Defaults to the OS filesystem.
func WithFilesystem(fs afero.Fs) EngineOption {
	return func(e EngineV1) error {
		if fs == nil {
			return lgerrors.NewConfigError("filesystem cannot be nil", nil)
		}
		return e.SetFilesystem(fs)
	}
}

func WithLogDir(dir string) EngineOption {
	return func(e EngineV1) error {
		if dir == "" {
			return lgerrors.NewConfigError("log directory cannot be empty", nil)
		}
		return e.SetLogDir(dir)
	}
}

// WithCheckCadence sets the monitor's initial delay and period.
func WithCheckCadence(initialDelay, period time.Duration) EngineOption {
	return func(e EngineV1) error {
		if initialDelay < 0 || period <= 0 {
			return lgerrors.NewConfigError("check cadence requires a non-negative delay and a positive period", nil)
		}
		return e.SetCheckCadence(initialDelay, period)
	}
}

// WithWorkerPoolSize bounds concurrent tasks. Non-positive means NumCPU.
func WithWorkerPoolSize(size int) EngineOption {
	return func(e EngineV1) error {
		if size <= 0 {
			size = runtime.NumCPU()
		}
		return e.SetWorkerPoolSize(size)
	}
}

// WithDefaultTimeout applies to tasks without their own timeout. Zero disables it.
func WithDefaultTimeout(timeout time.Duration) EngineOption {
	return func(e EngineV1) error {
		if timeout < 0 {
			return lgerrors.NewConfigError("default timeout cannot be negative", nil)
		}
		return e.SetDefaultTimeout(timeout)
	}
}
