// Package tracing provides the OpenTelemetry provider and span helpers.
package tracing

import (
	"errors"

	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the engine and the guard.
const (
	AttrJobName     = attribute.Key("logguard.job.name")
	AttrRunID       = attribute.Key("logguard.run.id")
	AttrTaskName    = attribute.Key("logguard.task.name")
	AttrStepName    = attribute.Key("logguard.step.name")
	AttrStepType    = attribute.Key("logguard.step.type")
	AttrThresholdMB = attribute.Key("logguard.log_size.threshold_mb")
	AttrOutcome     = attribute.Key("logguard.log_size.outcome")
)

// RecordErrorWithContext records err on span and marks it as failed. An
// interrupt also tags the span with its outcome.
func RecordErrorWithContext(span oteltrace.Span, err error) {
	if err == nil || span == nil || !span.IsRecording() {
		return
	}
	var interrupted *lgerrors.InterruptedError
	if errors.As(err, &interrupted) {
		span.SetAttributes(AttrOutcome.String(interrupted.Outcome))
	}
	span.RecordError(err, oteltrace.WithStackTrace(true))
	span.SetStatus(codes.Error, err.Error())
}
