package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gxo-labs/logguard/internal/config"
	"github.com/gxo-labs/logguard/internal/guard"
	"github.com/gxo-labs/logguard/internal/retry"
	intTracing "github.com/gxo-labs/logguard/internal/tracing"
	"github.com/gxo-labs/logguard/internal/util"

	lg "github.com/gxo-labs/logguard/pkg/logguard/v1"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/events"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/plugin"
	lgtracing "github.com/gxo-labs/logguard/pkg/logguard/v1/tracing"
)

// RunRequest carries everything needed to run one task.
type RunRequest struct {
	Job            *config.Job
	Task           *config.Task
	TaskID         string
	LogPath        string
	Filesystem     afero.Fs
	Guard          *guard.Guard
	DefaultTimeout time.Duration
}

// TaskRunner executes the steps of a single task inside its resource scope.
type TaskRunner struct {
	registry       plugin.Registry
	eventBus       events.Bus
	retryHelper    *retry.Helper
	tracerProvider lgtracing.TracerProvider
	log            lglog.Logger
}

func NewTaskRunner(
	registry plugin.Registry,
	eventBus events.Bus,
	retryHelper *retry.Helper,
	tracerProvider lgtracing.TracerProvider,
	log lglog.Logger,
) *TaskRunner {
	return &TaskRunner{
		registry:       registry,
		eventBus:       eventBus,
		retryHelper:    retryHelper,
		tracerProvider: tracerProvider,
		log:            log,
	}
}

// Run executes req.Task and always returns a terminal result.
func (r *TaskRunner) Run(ctx context.Context, req RunRequest) (result lg.TaskResult) {
	task := req.Task
	jobName := req.Job.Name
	taskLog := r.log.With("task", task.Name, "task_id", req.TaskID)

	tracer := r.tracerProvider.GetTracer(tracerName)
	ctx, span := tracer.Start(ctx, "logguard.task.run", oteltrace.WithAttributes(
		intTracing.AttrJobName.String(jobName),
		intTracing.AttrTaskName.String(task.Name),
	))
	defer span.End()

	result = lg.TaskResult{Status: lg.StatusRunning, LogPath: req.LogPath, StartTime: time.Now()}
	r.emit(events.TaskStart, jobName, task, req.TaskID, map[string]interface{}{"log_path": req.LogPath})

	var taskErr error
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		if taskErr != nil && result.Error == "" {
			result.Error = taskErr.Error()
		}
		if info, err := req.Filesystem.Stat(req.LogPath); err == nil {
			result.LogBytes = uint64(info.Size())
		}

		span.SetAttributes(
			attribute.String("logguard.task.status", result.Status),
			attribute.Int64("logguard.task.log_bytes", int64(result.LogBytes)),
		)
		if taskErr != nil {
			intTracing.RecordErrorWithContext(span, taskErr)
		} else {
			span.SetStatus(codes.Ok, "")
		}

		r.emit(events.TaskStatusChanged, jobName, task, req.TaskID, map[string]interface{}{
			"old_status": lg.StatusRunning, "new_status": result.Status,
		})
		r.emit(events.TaskEnd, jobName, task, req.TaskID, map[string]interface{}{
			"status": result.Status, "log_bytes": result.LogBytes, "duration_ms": result.Duration.Milliseconds(),
		})
		taskLog.Infof("Task finished: %s (log %s, %s)", result.Status, humanize.IBytes(result.LogBytes), result.Duration.Truncate(time.Millisecond))
	}()

	output, err := openTaskOutput(req.Filesystem, req.LogPath)
	if err != nil {
		taskErr = lgerrors.NewTaskExecutionError(task.Name, err)
		result.Status = lg.StatusFailed
		return result
	}

	timeout := task.GetTimeout()
	if timeout == 0 {
		timeout = req.DefaultTimeout
	}
	execParent := ctx
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		execParent, cancelTimeout = context.WithTimeout(ctx, timeout)
		defer cancelTimeout()
	}
	execution := newTaskExecution(execParent)
	defer execution.release()

	scope := &taskScope{}
	defer scope.Close()
	scope.OnTeardown(func() {
		if err := output.Close(); err != nil {
			taskLog.Warnf("Failed to close task log: %v", err)
		}
	})

	handle, err := req.Guard.Attach(guard.Task{
		ID:        req.TaskID,
		Name:      task.Name,
		JobName:   jobName,
		Settings:  task.Settings(),
		Output:    output,
		Execution: execution,
		Scope:     scope,
	})
	if err != nil {
		taskLog.Errorf("Failed to attach log size monitor: %v", err)
		taskErr = lgerrors.NewTaskExecutionError(task.Name, err)
		result.Status = lg.StatusFailed
		return result
	}
	if handle != nil {
		result.ThresholdMB = handle.ThresholdMB()
		span.SetAttributes(intTracing.AttrThresholdMB.Int64(int64(handle.ThresholdMB())))
	}

	stepErr := r.runSteps(execution.Context(), jobName, req.TaskID, task, output, taskLog)
	execution.finish()
	scope.Close()

	if outcome, reason, interrupted := execution.Interrupted(); interrupted {
		result.Status = string(outcome)
		result.Outcome = string(outcome)
		result.Reason = reason
		taskErr = lgerrors.NewInterruptedError(string(outcome), reason)
		return result
	}

	switch {
	case stepErr == nil:
		result.Status = lg.StatusCompleted
	case ctx.Err() != nil:
		result.Status = lg.StatusAborted
		taskErr = lgerrors.NewTaskExecutionError(task.Name, fmt.Errorf("cancelled: %w", stepErr))
	case errors.Is(execParent.Err(), context.DeadlineExceeded):
		result.Status = lg.StatusFailed
		taskErr = lgerrors.NewTaskExecutionError(task.Name, fmt.Errorf("timed out after %s: %w", timeout, stepErr))
	default:
		result.Status = lg.StatusFailed
		taskErr = lgerrors.NewTaskExecutionError(task.Name, stepErr)
	}
	return result
}

func (r *TaskRunner) runSteps(ctx context.Context, jobName, taskID string, task *config.Task, output *taskOutput, taskLog lglog.Logger) error {
	tracer := r.tracerProvider.GetTracer(tracerName)

	for i := range task.Steps {
		step := &task.Steps[i]
		name := step.DisplayName()

		factory, err := r.registry.Get(step.Type)
		if err != nil {
			return err
		}

		stepCtx, span := tracer.Start(ctx, "logguard.step.perform", oteltrace.WithAttributes(
			intTracing.AttrStepName.String(name),
			intTracing.AttrStepType.String(step.Type),
		))
		start := time.Now()
		r.emit(events.StepStart, jobName, task, taskID, map[string]interface{}{"step": name, "type": step.Type, "index": i})
		taskLog.Debugf("Running step %d '%s' (%s)", i, name, step.Type)

		err = r.retryHelper.Do(stepCtx, retry.Config{
			Attempts:      step.GetRetryAttempts(),
			Delay:         step.GetRetryDelay(),
			MaxDelay:      step.GetRetryMaxDelay(),
			BackoffFactor: step.GetRetryBackoffFactor(),
			Jitter:        step.GetRetryJitter(),
			StepName:      name,
		}, func(attemptCtx context.Context) error {
			_, performErr := factory().Perform(attemptCtx, util.CopyParams(step.Params), output)
			return performErr
		})

		status := lg.StatusCompleted
		if err != nil {
			status = lg.StatusFailed
			intTracing.RecordErrorWithContext(span, err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		r.emit(events.StepEnd, jobName, task, taskID, map[string]interface{}{
			"step": name, "type": step.Type, "index": i, "status": status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			taskLog.Debugf("Step '%s' failed: %v", name, err)
			return fmt.Errorf("step '%s': %w", name, err)
		}
	}
	return nil
}

func (r *TaskRunner) emit(t events.EventType, jobName string, task *config.Task, taskID string, payload map[string]interface{}) {
	r.eventBus.Emit(events.Event{
		Type:      t,
		Timestamp: time.Now(),
		JobName:   jobName,
		TaskName:  task.Name,
		TaskID:    taskID,
		Payload:   payload,
	})
}
