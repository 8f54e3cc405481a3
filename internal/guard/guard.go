// Package guard ties a log size monitor to the lifetime of one task run.
//
// Attach resolves the effective threshold, schedules a Monitor on the shared
// scheduler and registers the handle's Teardown on the task's resource scope.
// Teardown cancels the schedule exactly once, whichever way the scope ends.
package guard

import (
	"sync"
	"time"

	intEvents "github.com/gxo-labs/logguard/internal/events"
	"github.com/gxo-labs/logguard/internal/logger"
	intMetrics "github.com/gxo-labs/logguard/internal/metrics"
	"github.com/gxo-labs/logguard/internal/monitor"
	"github.com/gxo-labs/logguard/internal/threshold"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/events"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/settings"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/supervise"
)

// Task describes one task run to supervise.
type Task struct {
	// ID identifies the run; at most one monitor is attached per ID.
	ID       string
	Name     string
	JobName  string
	Settings supervise.TaskSettings

	Output    supervise.OutputHandle
	Execution supervise.ExecutionHandle
	Scope     supervise.Scope
}

// Option configures a Guard.
type Option func(*Guard)

// WithCadence overrides the monitor firing cadence.
func WithCadence(initialDelay, period time.Duration) Option {
	return func(g *Guard) {
		if initialDelay >= 0 {
			g.initialDelay = initialDelay
		}
		if period > 0 {
			g.period = period
		}
	}
}

// WithLogger sets the logger shared by the guard and its monitors.
func WithLogger(log lglog.Logger) Option {
	return func(g *Guard) {
		if log != nil {
			g.log = log
		}
	}
}

// WithEventBus sets the bus monitor lifecycle and threshold events are emitted on.
func WithEventBus(bus events.Bus) Option {
	return func(g *Guard) {
		if bus != nil {
			g.bus = bus
		}
	}
}

// WithMetrics sets the collectors updated on attach, detach and every check.
func WithMetrics(s *intMetrics.Supervision) Option {
	return func(g *Guard) { g.metrics = s }
}

// Guard attaches monitors to task runs.
type Guard struct {
	scheduler    supervise.Scheduler
	store        settings.Store
	initialDelay time.Duration
	period       time.Duration

	log     lglog.Logger
	bus     events.Bus
	metrics *intMetrics.Supervision

	mu       sync.Mutex
	attached map[string]*Handle
}

// New creates a Guard scheduling on scheduler and reading the global default
// from store. A nil store behaves as a global default of 0.
func New(scheduler supervise.Scheduler, store settings.Store, opts ...Option) (*Guard, error) {
	if scheduler == nil {
		return nil, lgerrors.NewConfigError("guard requires a scheduler", nil)
	}
	g := &Guard{
		scheduler:    scheduler,
		store:        store,
		initialDelay: monitor.DefaultInitialDelay,
		period:       monitor.DefaultPeriod,
		log:          logger.NewNopLogger(),
		bus:          intEvents.NewNoOpEventBus(),
		attached:     make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Cadence returns the initial delay and period used for new monitors.
func (g *Guard) Cadence() (time.Duration, time.Duration) {
	return g.initialDelay, g.period
}

// Attach starts supervising task. It returns (nil, nil) when the resolved
// threshold disables monitoring, and a LifecycleError when the task already
// has a live monitor.
func (g *Guard) Attach(task Task) (*Handle, error) {
	if task.ID == "" {
		return nil, lgerrors.NewValidationError("task ID is required to attach a monitor", nil)
	}
	if task.Output == nil || task.Execution == nil || task.Scope == nil {
		return nil, lgerrors.NewValidationError("task '"+task.ID+"' is missing an output, execution or scope handle", nil)
	}

	var globalDefault int32
	if g.store != nil {
		globalDefault = g.store.GlobalDefaultMB()
	}
	thresholdMB := threshold.Resolve(task.Settings.SetOwn, task.Settings.MaxLogSize, globalDefault)
	if !threshold.Enabled(thresholdMB) {
		g.log.Debugf("Log size monitoring disabled for task '%s' (threshold %d MB)", task.ID, thresholdMB)
		return nil, nil
	}

	g.mu.Lock()
	if _, exists := g.attached[task.ID]; exists {
		g.mu.Unlock()
		g.metrics.ObserveAttachRejected()
		return nil, lgerrors.NewLifecycleError(task.ID, "a monitor is already attached")
	}
	h := &Handle{
		guard:       g,
		task:        task,
		thresholdMB: thresholdMB,
	}
	h.monitor = monitor.New(task.Output, task.Execution, monitor.NewConfig(thresholdMB, task.Settings.FailBuild),
		monitor.WithLogger(g.log.With("task_id", task.ID)),
		monitor.WithEventBus(g.bus),
		monitor.WithMetrics(g.metrics),
		monitor.WithIdentity(monitor.Identity{JobName: task.JobName, TaskName: task.Name, TaskID: task.ID}),
	)
	g.attached[task.ID] = h
	h.token = g.scheduler.ScheduleRecurring(g.initialDelay, g.period, h.monitor.Check)
	g.mu.Unlock()

	task.Scope.OnTeardown(h.Teardown)

	g.metrics.MonitorAttached()
	g.log.Debugf("Attached log size monitor to task '%s' (threshold %d MB, outcome %s)",
		task.ID, thresholdMB, h.monitor.Config().Outcome())
	g.emit(events.MonitorAttached, task, map[string]interface{}{
		"threshold_mb": thresholdMB,
		"outcome":      string(h.monitor.Config().Outcome()),
	})
	return h, nil
}

// Detach tears down the monitor attached to taskID, if any.
func (g *Guard) Detach(taskID string) {
	g.mu.Lock()
	h := g.attached[taskID]
	g.mu.Unlock()
	h.Teardown()
}

// Active returns the number of attached monitors.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.attached)
}

func (g *Guard) emit(t events.EventType, task Task, payload map[string]interface{}) {
	g.bus.Emit(events.Event{
		Type:      t,
		Timestamp: time.Now(),
		JobName:   task.JobName,
		TaskName:  task.Name,
		TaskID:    task.ID,
		Payload:   payload,
	})
}

// Handle is the scheduled monitor of one task run.
type Handle struct {
	guard       *Guard
	task        Task
	thresholdMB int32
	monitor     *monitor.Monitor
	token       supervise.CancelToken
	once        sync.Once
}

// ThresholdMB returns the resolved threshold.
func (h *Handle) ThresholdMB() int32 { return h.thresholdMB }

// Monitor returns the scheduled monitor.
func (h *Handle) Monitor() *monitor.Monitor { return h.monitor }

// Teardown cancels the schedule. It is safe to call more than once and on a
// nil Handle.
func (h *Handle) Teardown() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.token.Cancel()

		g := h.guard
		g.mu.Lock()
		if g.attached[h.task.ID] == h {
			delete(g.attached, h.task.ID)
		}
		g.mu.Unlock()

		g.metrics.MonitorDetached()
		g.log.Debugf("Detached log size monitor from task '%s'", h.task.ID)
		g.emit(events.MonitorDetached, h.task, map[string]interface{}{
			"fired": h.monitor.Fired(),
		})
	})
}
