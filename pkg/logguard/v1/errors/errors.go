package errors

import (
	"errors"
	"fmt"
)

// --- logguard Error Types ---

// ConfigError represents an error encountered while loading or parsing
// job files, settings files, or engine options.
type ConfigError struct {
	Message string
	Cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{Message: message, Cause: cause}
}
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationError indicates that some input (job structure, schema version,
// step parameters, a submitted settings value) failed validation checks.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// TaskExecutionError represents a fatal error that occurred while running a
// task, typically returned by a step module's Perform method.
type TaskExecutionError struct {
	TaskName string
	Cause    error
}

func NewTaskExecutionError(taskName string, cause error) *TaskExecutionError {
	return &TaskExecutionError{TaskName: taskName, Cause: cause}
}
func (e *TaskExecutionError) Error() string {
	if e.TaskName == "" {
		return fmt.Sprintf("task execution failed: %v", e.Cause)
	}
	return fmt.Sprintf("task '%s' execution failed: %v", e.TaskName, e.Cause)
}
func (e *TaskExecutionError) Unwrap() error { return e.Cause }

// ModuleNotFoundError indicates that a step 'type' could not be found in the
// module registry.
type ModuleNotFoundError struct {
	ModuleName string
}

func NewModuleNotFoundError(moduleName string) *ModuleNotFoundError {
	return &ModuleNotFoundError{ModuleName: moduleName}
}
func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("step module not found: %s", e.ModuleName)
}

// LifecycleError reports misuse of the monitor lifecycle, such as attaching
// a second monitor to a task that already has one.
type LifecycleError struct {
	TaskID string
	Reason string
}

func NewLifecycleError(taskID, reason string) *LifecycleError {
	return &LifecycleError{TaskID: taskID, Reason: reason}
}
func (e *LifecycleError) Error() string {
	return fmt.Sprintf("monitor lifecycle violation for task '%s': %s", e.TaskID, e.Reason)
}

// InterruptedError is the cancellation cause recorded on a task's context
// when the task was forcibly stopped. Outcome is "Aborted" or "Failed".
type InterruptedError struct {
	Outcome string
	Reason  string
}

func NewInterruptedError(outcome, reason string) *InterruptedError {
	return &InterruptedError{Outcome: outcome, Reason: reason}
}
func (e *InterruptedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("task interrupted (%s)", e.Outcome)
	}
	return fmt.Sprintf("task interrupted (%s): %s", e.Outcome, e.Reason)
}

// IsInterrupted reports whether err carries an InterruptedError and returns it.
func IsInterrupted(err error) (*InterruptedError, bool) {
	var ie *InterruptedError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
