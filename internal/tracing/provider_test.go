package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/gxo-labs/logguard/internal/logger"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProviderFromEnvDisabledByDefault(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	p, err := NewProviderFromEnv(context.Background(), logger.NewNopLogger())
	require.NoError(t, err)
	assert.True(t, p.IsEffectivelyNoOp())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderFromEnvSDKDisabled(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	p, err := NewProviderFromEnv(context.Background(), logger.NewNopLogger())
	require.NoError(t, err)
	assert.True(t, p.IsEffectivelyNoOp())
}

func TestNewProviderFromEnvUnsupportedProtocol(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "carrier-pigeon")
	_, err := NewProviderFromEnv(context.Background(), logger.NewNopLogger())
	assert.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1", "b": "two"}, parseHeaders(" a=1 , b=two ,junk"))
	assert.Equal(t, 250*time.Millisecond, parseTimeout("250", time.Second))
	assert.Equal(t, 3*time.Second, parseTimeout("3s", time.Second))
	assert.Equal(t, time.Second, parseTimeout("nope", time.Second))
	assert.True(t, isInsecure("", " TRUE "))
	assert.False(t, isInsecure("false"))
}

func TestRecordErrorWithContext(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "task")

	RecordErrorWithContext(span, lgerrors.NewInterruptedError("failed", "Max Log Size reached"))
	RecordErrorWithContext(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	found := false
	for _, kv := range spans[0].Attributes() {
		if kv.Key == AttrOutcome {
			found = true
			assert.Equal(t, "failed", kv.Value.AsString())
		}
	}
	assert.True(t, found)
}
