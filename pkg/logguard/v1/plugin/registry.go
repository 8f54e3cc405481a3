package plugin

import (
	"context"
	"io"
)

// Module is the unit of work executed by a task step.
type Module interface {
	// Perform runs the step.
	//
	// - ctx carries the task's deadline and cancellation. When the log size
	//   monitor interrupts a task, ctx is cancelled with an InterruptedError
	//   cause; modules MUST return promptly once ctx is done.
	//
	// - params holds the step's parameters exactly as written in the job file.
	//   Use internal/paramutil helpers to read them.
	//
	// - out is the task's output stream. Everything written here is counted
	//   toward the task's log size.
	//
	// The returned summary is recorded in the step result. A non-nil error
	// fails the task.
	Perform(ctx context.Context, params map[string]interface{}, out io.Writer) (summary interface{}, err error)
}

// ModuleFactory creates new instances of a specific Module.
type ModuleFactory func() Module

// Registry maps step type names to module factories.
type Registry interface {
	// Get retrieves the factory for name, or a ModuleNotFoundError.
	Get(name string) (ModuleFactory, error)

	// Register associates name with factory. It is concurrency-safe and
	// rejects empty names, nil factories, and duplicates.
	Register(name string, factory ModuleFactory) error

	// List returns the registered names in no particular order.
	List() []string
}
