package events

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gxo-labs/logguard/internal/logger"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/events"
)

func TestChannelEventBus_DropsWhenFullAndAfterClose(t *testing.T) {
	bus := NewChannelEventBus(1, logger.NewNopLogger())

	bus.Emit(events.Event{Type: events.TaskStart})
	assert.NotPanics(t, func() { bus.Emit(events.Event{Type: events.TaskEnd}) }, "a full buffer must not block or panic")

	bus.Close()
	bus.Close()
	assert.NotPanics(t, func() { bus.Emit(events.Event{Type: events.JobEnd}) })

	var got []events.EventType
	for e := range bus.GetChannel() {
		got = append(got, e.Type)
	}
	assert.Equal(t, []events.EventType{events.TaskStart}, got)
}

func TestMetricsEventListener_CountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := NewChannelEventBus(10, logger.NewNopLogger())
	listener, err := NewMetricsEventListener(bus, reg, logger.NewNopLogger())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		listener.Start(context.Background())
		close(done)
	}()

	bus.Emit(events.Event{Type: events.MonitorAttached, JobName: "build"})
	bus.Emit(events.Event{
		Type:    events.LogSizeExceeded,
		JobName: "build",
		Payload: map[string]interface{}{"outcome": "Failed"},
	})
	bus.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after the bus was closed")
	}

	expected := `
# HELP logguard_log_size_exceeded_total Total number of log size threshold crossings observed, by job and outcome.
# TYPE logguard_log_size_exceeded_total counter
logguard_log_size_exceeded_total{job_name="build",outcome="Failed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "logguard_log_size_exceeded_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(listener.events))
}

func TestMetricsEventListener_SharesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := NewChannelEventBus(1, logger.NewNopLogger())
	defer bus.Close()

	first, err := NewMetricsEventListener(bus, reg, logger.NewNopLogger())
	require.NoError(t, err)
	second, err := NewMetricsEventListener(bus, reg, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Same(t, first.exceeded, second.exceeded)
}
