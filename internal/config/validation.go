package config

import (
	"fmt"
	"regexp"
	"time"

	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
)

// Task names become log file names, so they are restricted to a safe set.
var taskNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateJobStructure checks rules the JSON schema cannot express and
// returns every violation found.
func ValidateJobStructure(j *Job) []error {
	var errs []error

	if len(j.Tasks) == 0 {
		errs = append(errs, lgerrors.NewValidationError("job must contain at least one task in 'tasks' list", nil))
	}

	taskNames := make(map[string]bool)
	for i := range j.Tasks {
		task := &j.Tasks[i]
		taskDisplayName := fmt.Sprintf("task %d", i)
		if task.Name != "" {
			taskDisplayName = fmt.Sprintf("task %d ('%s')", i, task.Name)
		}

		if task.Name == "" {
			errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: 'name' is required", taskDisplayName), nil))
		} else {
			if !taskNameRegex.MatchString(task.Name) {
				errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: name contains invalid characters (allowed: alphanumeric, underscore, hyphen)", taskDisplayName), nil))
			}
			if taskNames[task.Name] {
				errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: duplicate task name found", taskDisplayName), nil))
			}
			taskNames[task.Name] = true
		}

		if task.Timeout != "" {
			if d, err := time.ParseDuration(task.Timeout); err != nil {
				errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: invalid format for 'timeout': %v", taskDisplayName, err), nil))
			} else if d < 0 {
				errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: 'timeout' cannot be negative", taskDisplayName), nil))
			}
		}

		if len(task.Steps) == 0 {
			errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: at least one step is required", taskDisplayName), nil))
		}
		for k := range task.Steps {
			errs = append(errs, validateStep(fmt.Sprintf("%s step %d", taskDisplayName, k), &task.Steps[k])...)
		}
		// log_size values are passed through as is: zero and negative values
		// are meaningful "disabled" settings, not errors.
	}
	return errs
}

func validateStep(display string, step *Step) []error {
	var errs []error
	if step.Type == "" {
		errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: 'type' is required", display), nil))
	}
	if step.Retry == nil {
		return errs
	}
	if step.Retry.Attempts < 1 {
		errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: 'retry.attempts' must be at least 1", display), nil))
	}
	var baseDelay time.Duration
	var delayErr error
	if step.Retry.Delay != "" {
		baseDelay, delayErr = time.ParseDuration(step.Retry.Delay)
		if delayErr != nil {
			errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: invalid format for 'retry.delay': %v", display, delayErr), nil))
		} else if baseDelay < 0 {
			errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: 'retry.delay' cannot be negative", display), nil))
		}
	}
	if step.Retry.MaxDelay != "" {
		maxDelay, maxDelayErr := time.ParseDuration(step.Retry.MaxDelay)
		if maxDelayErr != nil {
			errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: invalid format for 'retry.max_delay': %v", display, maxDelayErr), nil))
		} else if maxDelay > 0 && delayErr == nil && maxDelay < baseDelay {
			errs = append(errs, lgerrors.NewValidationError(fmt.Sprintf("%s: 'retry.max_delay' (%v) cannot be less than 'retry.delay' (%v)", display, maxDelay, baseDelay), nil))
		}
	}
	return errs
}
