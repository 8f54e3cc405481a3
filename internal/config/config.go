package config

import (
	"time"

	"github.com/gxo-labs/logguard/pkg/logguard/v1/supervise"
)

// Job is the top-level structure of a job file.
type Job struct {
	Name          string `yaml:"name"`
	SchemaVersion string `yaml:"schemaVersion"`
	Tasks         []Task `yaml:"tasks"`

	// FilePath records where the job was loaded from, for messages only.
	FilePath string `yaml:"-"`
}

// Task is one supervised unit of work. Its steps run in order and share a
// single output stream.
type Task struct {
	Name    string                  `yaml:"name"`
	Steps   []Step                  `yaml:"steps"`
	Timeout string                  `yaml:"timeout,omitempty"`
	LogSize *supervise.TaskSettings `yaml:"log_size,omitempty"`

	// InternalID is assigned during loading and keys all engine bookkeeping.
	InternalID string `yaml:"-"`
}

// Step invokes one registered module.
type Step struct {
	Name   string                 `yaml:"name,omitempty"`
	Type   string                 `yaml:"type"`
	Params map[string]interface{} `yaml:"params,omitempty"`
	Retry  *RetryConfig           `yaml:"retry,omitempty"`
}

// RetryConfig defines how a failing step is retried. Retries stop as soon
// as the task is interrupted.
type RetryConfig struct {
	Attempts      int      `yaml:"attempts,omitempty"`
	Delay         string   `yaml:"delay,omitempty"`
	MaxDelay      string   `yaml:"max_delay,omitempty"`
	BackoffFactor *float64 `yaml:"backoff_factor,omitempty"`
	Jitter        *float64 `yaml:"jitter,omitempty"`
}

// Settings returns the task's log size settings; a task without a log_size
// block uses the global default.
func (t *Task) Settings() supervise.TaskSettings {
	if t.LogSize == nil {
		return supervise.TaskSettings{}
	}
	return *t.LogSize
}

// GetTimeout returns the configured task timeout, or 0 if unset/invalid.
func (t *Task) GetTimeout() time.Duration {
	if t.Timeout == "" {
		return 0
	}
	duration, err := time.ParseDuration(t.Timeout)
	if err != nil || duration < 0 {
		return 0
	}
	return duration
}

// DisplayName returns the step name, falling back to its type.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Type
}

// GetRetryAttempts returns the configured number of attempts or the default (1).
func (s *Step) GetRetryAttempts() int {
	if s.Retry != nil && s.Retry.Attempts >= 1 {
		return s.Retry.Attempts
	}
	return 1
}

// GetRetryDelay returns the configured base retry delay or the default (1 second).
func (s *Step) GetRetryDelay() time.Duration {
	delayStr := "1s"
	if s.Retry != nil && s.Retry.Delay != "" {
		delayStr = s.Retry.Delay
	}
	duration, err := time.ParseDuration(delayStr)
	if err != nil || duration < 0 {
		return time.Second
	}
	return duration
}

// GetRetryMaxDelay returns the configured maximum retry delay, or 0 if unset/invalid.
func (s *Step) GetRetryMaxDelay() time.Duration {
	if s.Retry != nil && s.Retry.MaxDelay != "" {
		duration, err := time.ParseDuration(s.Retry.MaxDelay)
		if err != nil || duration < 0 {
			return 0
		}
		return duration
	}
	return 0
}

// GetRetryBackoffFactor returns the configured backoff factor, defaulting to 1.0.
func (s *Step) GetRetryBackoffFactor() float64 {
	if s.Retry != nil && s.Retry.BackoffFactor != nil && *s.Retry.BackoffFactor >= 1.0 {
		return *s.Retry.BackoffFactor
	}
	return 1.0
}

// GetRetryJitter returns the configured jitter factor clamped to [0, 1].
func (s *Step) GetRetryJitter() float64 {
	if s.Retry == nil || s.Retry.Jitter == nil {
		return 0.0
	}
	jitter := *s.Retry.Jitter
	if jitter < 0.0 {
		return 0.0
	}
	if jitter > 1.0 {
		return 1.0
	}
	return jitter
}
