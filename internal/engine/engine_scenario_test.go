package engine_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gxo-labs/logguard/internal/monitor"
	"github.com/gxo-labs/logguard/modules/emit"
	"github.com/gxo-labs/logguard/modules/sleep"
	lg "github.com/gxo-labs/logguard/pkg/logguard/v1"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/events"
)

const burstBytes = 2100 * 1000 // "2100kB"

func stepRegistry(t *testing.T) *InMemoryRegistry {
	t.Helper()
	reg := NewInMemoryRegistry()
	require.NoError(t, reg.Register("emit", emit.NewEmitModule))
	require.NoError(t, reg.Register("sleep", sleep.NewSleepModule))
	return reg
}

func noticeLine(thresholdMB uint64) string {
	return monitor.Reason(thresholdMB) + "\n"
}

// burstJob writes 2100kB, pauses for a second and writes 2100kB again.
func burstJob(maxLogSize int32, failBuild, setOwn bool) string {
	return fmt.Sprintf(`
schemaVersion: "v1.0.0"
name: bursts
tasks:
  - name: burst
    log_size:
      max_log_size: %d
      fail_build: %t
      set_own: %t
    steps:
      - name: first_burst
        type: emit
        params:
          size: "2100kB"
      - name: pause
        type: sleep
        params:
          duration: "1s"
      - name: second_burst
        type: emit
        params:
          size: "2100kB"
`, maxLogSize, failBuild, setOwn)
}

func TestEngine_RunJob_BurstScenarios(t *testing.T) {
	cases := []struct {
		name          string
		globalDefault int32
		maxLogSize    int32
		failBuild     bool
		setOwn        bool
		wantStatus    string
		wantThreshold int32
	}{
		{name: "own_limit_hard", maxLogSize: 1, failBuild: true, setOwn: true, wantStatus: lg.StatusFailed, wantThreshold: 1},
		{name: "own_limit_not_reached", maxLogSize: 5, failBuild: true, setOwn: true, wantStatus: lg.StatusCompleted, wantThreshold: 5},
		{name: "global_default_soft", globalDefault: 1, wantStatus: lg.StatusAborted, wantThreshold: 1},
		{name: "global_default_hard", globalDefault: 1, failBuild: true, wantStatus: lg.StatusFailed, wantThreshold: 1},
		{name: "own_zero_ignores_global_default", globalDefault: 1, failBuild: true, setOwn: true, wantStatus: lg.StatusCompleted},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := setupTestEngine(t, tc.globalDefault,
				lg.WithModuleRegistry(stepRegistry(t)),
				lg.WithCheckCadence(250*time.Millisecond, 250*time.Millisecond),
			)
			report := env.run(t, burstJob(tc.maxLogSize, tc.failBuild, tc.setOwn))

			res := report.TaskResults["burst"]
			assert.Equal(t, tc.wantStatus, res.Status)
			assert.Equal(t, tc.wantStatus, report.OverallStatus)
			assert.Equal(t, tc.wantThreshold, res.ThresholdMB)

			logText := env.logText(t, res)
			if tc.wantStatus == lg.StatusCompleted {
				assert.Empty(t, res.Outcome)
				assert.NotContains(t, logText, "Max Log Size reached")
				assert.Equal(t, uint64(2*burstBytes), res.LogBytes)
				assert.Zero(t, env.bus.count(events.LogSizeExceeded, "burst"))
				return
			}

			notice := noticeLine(uint64(tc.wantThreshold))
			assert.Equal(t, tc.wantStatus, res.Outcome)
			assert.Equal(t, strings.TrimSuffix(notice, "\n"), res.Reason)
			assert.Equal(t, 1, strings.Count(logText, notice))
			assert.True(t, strings.HasSuffix(logText, notice), "the notice is the last line written")
			// The monitor stops the task during the pause, so the second burst
			// never starts.
			assert.LessOrEqual(t, res.LogBytes, uint64(burstBytes+len(notice)))
			assert.LessOrEqual(t, env.bus.count(events.StepStart, "burst"), 2)
			assert.Equal(t, 1, env.bus.count(events.LogSizeExceeded, "burst"))
		})
	}
}

func TestEngine_RunJob_OvershootBoundedByOnePeriod(t *testing.T) {
	const (
		period   = 100 * time.Millisecond
		interval = 50 * time.Millisecond
		chunk    = 64 * 1024
	)
	env := setupTestEngine(t, 0,
		lg.WithModuleRegistry(stepRegistry(t)),
		lg.WithCheckCadence(period, period),
	)
	report := env.run(t, `
schemaVersion: "v1.0.0"
name: steady
tasks:
  - name: steady
    log_size:
      max_log_size: 1
      fail_build: true
      set_own: true
    steps:
      - type: emit
        params:
          size: "4MiB"
          chunk_size: "64KiB"
          interval: "50ms"
`)

	res := report.TaskResults["steady"]
	require.Equal(t, lg.StatusFailed, res.Status)

	threshold := uint64(1 << 20)
	growthPerPeriod := uint64(period/interval) * chunk
	// One chunk crosses the threshold and at most one more lands while the
	// firing reads the size and interrupts.
	bound := threshold + growthPerPeriod + 2*chunk + uint64(len(noticeLine(1)))

	assert.Greater(t, res.LogBytes, threshold)
	assert.LessOrEqual(t, res.LogBytes, bound)
	assert.Less(t, res.LogBytes, uint64(4<<20))
	assert.Equal(t, 1, strings.Count(env.logText(t, res), noticeLine(1)))
}
