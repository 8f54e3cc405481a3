// Package monitor implements the recurring log size check for one task run.
//
// A Monitor samples the task's output size on every firing and, once the
// size strictly exceeds the threshold, writes a single notice line to the
// task output and interrupts the task. It never interrupts twice.
package monitor

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	intEvents "github.com/gxo-labs/logguard/internal/events"
	"github.com/gxo-labs/logguard/internal/logger"
	intMetrics "github.com/gxo-labs/logguard/internal/metrics"
	"github.com/gxo-labs/logguard/internal/threshold"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/events"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/supervise"
)

// Default firing cadence.
const (
	DefaultInitialDelay = 1000 * time.Millisecond
	DefaultPeriod       = 1000 * time.Millisecond
)

// Config is the immutable per-run configuration of a Monitor.
type Config struct {
	ThresholdBytes uint64
	HardFailure    bool
}

// NewConfig builds a Config from a resolved threshold in MB.
func NewConfig(thresholdMB int32, hardFailure bool) Config {
	return Config{ThresholdBytes: threshold.Bytes(thresholdMB), HardFailure: hardFailure}
}

// ThresholdMB returns the threshold in binary megabytes.
func (c Config) ThresholdMB() uint64 {
	return c.ThresholdBytes / threshold.BytesPerMB
}

// Outcome returns the outcome used when the threshold is crossed.
func (c Config) Outcome() supervise.Outcome {
	return supervise.OutcomeFor(c.HardFailure)
}

// Reason formats the notice written to the task output and passed to Interrupt.
func Reason(thresholdMB uint64) string {
	return fmt.Sprintf(">>> Max Log Size reached %d(MB). Aborting <<<", thresholdMB)
}

// Identity names the task a Monitor belongs to, for logs and events.
type Identity struct {
	JobName  string
	TaskName string
	TaskID   string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger. The default discards output.
func WithLogger(log lglog.Logger) Option {
	return func(m *Monitor) {
		if log != nil {
			m.log = log
		}
	}
}

// WithEventBus sets the bus LogSizeExceeded and LogSizeReadFailed are emitted on.
func WithEventBus(bus events.Bus) Option {
	return func(m *Monitor) {
		if bus != nil {
			m.bus = bus
		}
	}
}

// WithMetrics sets the collectors updated on every check.
func WithMetrics(s *intMetrics.Supervision) Option {
	return func(m *Monitor) { m.metrics = s }
}

// WithIdentity labels logs and events with the task identity.
func WithIdentity(id Identity) Option {
	return func(m *Monitor) { m.id = id }
}

// Monitor checks one task's output size against a threshold.
type Monitor struct {
	output supervise.OutputHandle
	exec   supervise.ExecutionHandle
	cfg    Config

	id      Identity
	log     lglog.Logger
	bus     events.Bus
	metrics *intMetrics.Supervision

	fired        atomic.Bool
	readFailures atomic.Int64
}

// New creates a Monitor. The handles are borrowed for the task run.
func New(output supervise.OutputHandle, exec supervise.ExecutionHandle, cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		output: output,
		exec:   exec,
		cfg:    cfg,
		log:    logger.NewNopLogger(),
		bus:    intEvents.NewNoOpEventBus(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the monitor configuration.
func (m *Monitor) Config() Config { return m.cfg }

// Fired reports whether this monitor has interrupted its task.
func (m *Monitor) Fired() bool { return m.fired.Load() }

// ReadFailures returns how many samples were skipped because the size could
// not be read.
func (m *Monitor) ReadFailures() int64 { return m.readFailures.Load() }

// Check runs one firing. It never panics and never blocks beyond the size
// query and the single notice write.
func (m *Monitor) Check() {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("Log size check for task '%s' panicked: %v", m.id.TaskID, r)
		}
	}()

	if m.fired.Load() {
		return
	}

	size, err := m.output.CurrentOutputSize()
	if err != nil {
		m.readFailures.Add(1)
		m.metrics.ObserveReadFailure()
		m.log.Debugf("Skipping log size check for task '%s': %v", m.id.TaskID, err)
		m.emit(events.LogSizeReadFailed, map[string]interface{}{"error": err.Error()})
		return
	}
	m.metrics.ObserveCheck()

	if m.exec.IsAlreadyTerminating() {
		return
	}
	if size <= m.cfg.ThresholdBytes {
		return
	}
	if !m.fired.CompareAndSwap(false, true) {
		return
	}

	reason := Reason(m.cfg.ThresholdMB())
	outcome := m.cfg.Outcome()
	if _, err := io.WriteString(m.output, reason+"\n"); err != nil {
		m.log.Warnf("Could not write log size notice to task '%s' output: %v", m.id.TaskID, err)
	}
	m.log.Infof("Task '%s' output reached %d bytes (threshold %d bytes); interrupting with outcome %s",
		m.id.TaskID, size, m.cfg.ThresholdBytes, outcome)
	m.exec.Interrupt(outcome, reason)

	m.metrics.ObserveInterrupt(string(outcome))
	m.emit(events.LogSizeExceeded, map[string]interface{}{
		"outcome":         string(outcome),
		"reason":          reason,
		"size_bytes":      size,
		"threshold_bytes": m.cfg.ThresholdBytes,
	})
}

func (m *Monitor) emit(t events.EventType, payload map[string]interface{}) {
	m.bus.Emit(events.Event{
		Type:      t,
		Timestamp: time.Now(),
		JobName:   m.id.JobName,
		TaskName:  m.id.TaskName,
		TaskID:    m.id.TaskID,
		Payload:   payload,
	})
}
