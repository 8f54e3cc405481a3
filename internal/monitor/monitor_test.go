package monitor_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/gxo-labs/logguard/internal/events"
	"github.com/gxo-labs/logguard/internal/logger"
	intMetrics "github.com/gxo-labs/logguard/internal/metrics"
	"github.com/gxo-labs/logguard/internal/monitor"
	"github.com/gxo-labs/logguard/internal/supervisetest"
	pkgevents "github.com/gxo-labs/logguard/pkg/logguard/v1/events"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/supervise"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1 << 20

func newMonitor(t *testing.T, thresholdMB int32, hard bool, opts ...monitor.Option) (*monitor.Monitor, *supervisetest.Output, *supervisetest.Execution) {
	t.Helper()
	out := &supervisetest.Output{}
	exec := &supervisetest.Execution{}
	return monitor.New(out, exec, monitor.NewConfig(thresholdMB, hard), opts...), out, exec
}

func TestNewConfig(t *testing.T) {
	cfg := monitor.NewConfig(3, true)
	assert.Equal(t, uint64(3*mb), cfg.ThresholdBytes)
	assert.Equal(t, uint64(3), cfg.ThresholdMB())
	assert.Equal(t, supervise.Failed, cfg.Outcome())
	assert.Equal(t, supervise.Aborted, monitor.NewConfig(3, false).Outcome())
}

func TestReason(t *testing.T) {
	assert.Equal(t, ">>> Max Log Size reached 1(MB). Aborting <<<", monitor.Reason(1))
}

func TestCheck_CrossingInterruptsExactlyOnce(t *testing.T) {
	m, out, exec := newMonitor(t, 1, true)

	out.Grow(mb / 2)
	m.Check()
	assert.Empty(t, exec.Calls())

	out.Grow(mb)
	m.Check()
	require.Len(t, exec.Calls(), 1)

	// A host that never reports the termination must still see one interrupt.
	exec.SetTerminating(false)
	for i := 0; i < 5; i++ {
		out.Grow(mb)
		m.Check()
	}
	assert.Len(t, exec.Calls(), 1)
	assert.True(t, m.Fired())
	assert.Equal(t, 1, strings.Count(out.Text(), "Max Log Size reached"))
}

func TestCheck_OutcomeMapping(t *testing.T) {
	for _, tc := range []struct {
		hard bool
		want supervise.Outcome
	}{
		{hard: true, want: supervise.Failed},
		{hard: false, want: supervise.Aborted},
	} {
		m, out, exec := newMonitor(t, 1, tc.hard)
		out.Grow(2 * mb)
		m.Check()
		calls := exec.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, tc.want, calls[0].Outcome)
		assert.Equal(t, monitor.Reason(1), calls[0].Reason)
	}
}

func TestCheck_NoInterruptAtOrBelowThreshold(t *testing.T) {
	m, out, exec := newMonitor(t, 2, true)
	for _, step := range []uint64{0, 1, mb, mb - 1} {
		out.Grow(step)
		m.Check()
	}
	size, err := out.CurrentOutputSize()
	require.NoError(t, err)
	require.Equal(t, uint64(2*mb), size)
	m.Check()
	assert.Empty(t, exec.Calls())

	out.Grow(1)
	m.Check()
	assert.Len(t, exec.Calls(), 1)
}

func TestCheck_NoticeWrittenBeforeInterrupt(t *testing.T) {
	m, out, exec := newMonitor(t, 1, false)
	out.Grow(mb + 1)
	m.Check()
	assert.Equal(t, ">>> Max Log Size reached 1(MB). Aborting <<<\n", out.Text())
	require.Len(t, exec.Calls(), 1)
}

func TestCheck_SkipsWhenAlreadyTerminating(t *testing.T) {
	m, out, exec := newMonitor(t, 1, true)
	exec.SetTerminating(true)
	out.Grow(5 * mb)
	m.Check()
	assert.Empty(t, exec.Calls())
	assert.Empty(t, out.Text())
	assert.False(t, m.Fired())

	exec.SetTerminating(false)
	m.Check()
	assert.Len(t, exec.Calls(), 1)
}

func TestCheck_ReadFailureSkipsCycle(t *testing.T) {
	bus := events.NewChannelEventBus(10, logger.NewNopLogger())
	m, out, exec := newMonitor(t, 1, true, monitor.WithEventBus(bus))

	out.Grow(2 * mb)
	out.FailReads(errors.New("stat failed"))
	m.Check()
	m.Check()
	assert.Empty(t, exec.Calls())
	assert.Equal(t, int64(2), m.ReadFailures())

	ev := <-bus.GetChannel()
	assert.Equal(t, pkgevents.LogSizeReadFailed, ev.Type)

	out.FailReads(nil)
	m.Check()
	assert.Len(t, exec.Calls(), 1)
}

func TestCheck_RecoversFromPanic(t *testing.T) {
	m, out, exec := newMonitor(t, 1, true)
	out.PanicOnRead(true)
	assert.NotPanics(t, m.Check)
	assert.Empty(t, exec.Calls())
}

func TestCheck_MetricsAndEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sup, err := intMetrics.NewSupervision(reg)
	require.NoError(t, err)
	bus := events.NewChannelEventBus(10, logger.NewNopLogger())

	m, out, _ := newMonitor(t, 1, false,
		monitor.WithMetrics(sup),
		monitor.WithEventBus(bus),
		monitor.WithIdentity(monitor.Identity{JobName: "nightly", TaskName: "build", TaskID: "build"}),
	)
	m.Check()
	out.Grow(2 * mb)
	m.Check()

	expected := `
# HELP logguard_monitor_interrupts_total Total number of tasks interrupted for exceeding their log size threshold, by outcome.
# TYPE logguard_monitor_interrupts_total counter
logguard_monitor_interrupts_total{outcome="Aborted"} 1
# HELP logguard_monitor_checks_total Total number of log size samples taken by monitors.
# TYPE logguard_monitor_checks_total counter
logguard_monitor_checks_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"logguard_monitor_interrupts_total", "logguard_monitor_checks_total"))

	ev := <-bus.GetChannel()
	assert.Equal(t, pkgevents.LogSizeExceeded, ev.Type)
	assert.Equal(t, "nightly", ev.JobName)
	assert.Equal(t, "Aborted", ev.Payload["outcome"])
}
