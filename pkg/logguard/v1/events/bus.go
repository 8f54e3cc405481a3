package events

import "time"

// EventType represents the type of a logguard engine event.
type EventType string

// Standard event types.
const (
	JobStart          EventType = "JobStart"
	JobEnd            EventType = "JobEnd"
	TaskStart         EventType = "TaskStart"
	TaskEnd           EventType = "TaskEnd"
	TaskStatusChanged EventType = "TaskStatusChanged" // Final status set
	StepStart         EventType = "StepStart"         // Before Module.Perform call
	StepEnd           EventType = "StepEnd"           // After Module.Perform returns
	MonitorAttached   EventType = "MonitorAttached"   // Log size monitor scheduled for a task
	MonitorDetached   EventType = "MonitorDetached"   // Log size monitor schedule cancelled
	LogSizeExceeded   EventType = "LogSizeExceeded"   // Monitor interrupted a task
	LogSizeReadFailed EventType = "LogSizeReadFailed" // A size sample failed; cycle skipped
)

// Event represents a significant occurrence within the engine.
type Event struct {
	// Type categorizes the event.
	Type EventType `json:"type"`
	// Timestamp marks when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// JobName identifies the job context, if applicable.
	JobName string `json:"job_name,omitempty"`
	// TaskName identifies the task context (user-defined name), if applicable.
	TaskName string `json:"task_name,omitempty"`
	// TaskID identifies the task context using its internal ID, if applicable.
	TaskID string `json:"task_id,omitempty"`
	// Payload contains event-specific data.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Bus defines the interface for publishing events.
type Bus interface {
	// Emit publishes an event to the bus. Implementations should be
	// non-blocking; Emit is called from monitor firings on the shared timer.
	Emit(event Event)
}
