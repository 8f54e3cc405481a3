// Package engine is the reference host for the log size guard: it runs the
// tasks of a job, gives each one a log file, an execution handle and a
// resource scope, and attaches a monitor for the lifetime of that scope.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/gxo-labs/logguard/internal/config"
	intEvents "github.com/gxo-labs/logguard/internal/events"
	"github.com/gxo-labs/logguard/internal/guard"
	intMetrics "github.com/gxo-labs/logguard/internal/metrics"
	"github.com/gxo-labs/logguard/internal/module"
	"github.com/gxo-labs/logguard/internal/monitor"
	"github.com/gxo-labs/logguard/internal/retry"
	"github.com/gxo-labs/logguard/internal/scheduler"
	intSettings "github.com/gxo-labs/logguard/internal/settings"
	intTracing "github.com/gxo-labs/logguard/internal/tracing"

	lg "github.com/gxo-labs/logguard/pkg/logguard/v1"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/events"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/metrics"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/plugin"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/settings"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/supervise"
	lgtracing "github.com/gxo-labs/logguard/pkg/logguard/v1/tracing"
)

const (
	tracerName    = "logguard-engine"
	defaultLogDir = "logs"
)

// Engine runs jobs. It is safe to run several jobs concurrently on one Engine.
type Engine struct {
	settingsStore   settings.Store
	eventBus        events.Bus
	moduleRegistry  plugin.Registry
	metricsProvider metrics.RegistryProvider
	tracerProvider  lgtracing.TracerProvider
	scheduler       supervise.Scheduler
	ownedScheduler  *scheduler.Service
	fs              afero.Fs
	log             lglog.Logger
	retryHelper     *retry.Helper
	taskRunner      *TaskRunner

	workerPoolSize int
	defaultTimeout time.Duration
	logDir         string
	checkDelay     time.Duration
	checkPeriod    time.Duration

	closeOnce sync.Once

	supervision     *intMetrics.Supervision
	jobCounter      *prometheus.CounterVec
	jobDuration     prometheus.Histogram
	taskCounter     *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	taskLogBytes    *prometheus.HistogramVec
	activeTaskGauge prometheus.Gauge
}

var _ lg.EngineV1 = (*Engine)(nil)

func NewEngine(log lglog.Logger, opts ...lg.EngineOption) (*Engine, error) {
	if log == nil {
		return nil, lgerrors.NewConfigError("logger cannot be nil", nil)
	}

	e := &Engine{
		log:            log,
		workerPoolSize: runtime.NumCPU(),
		logDir:         defaultLogDir,
		checkDelay:     monitor.DefaultInitialDelay,
		checkPeriod:    monitor.DefaultPeriod,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, lgerrors.NewConfigError(fmt.Sprintf("failed to apply engine option: %v", err), err)
		}
	}

	if e.settingsStore == nil {
		e.log.Warnf("No settings store provided, global default log size is 0 (disabled).")
		e.settingsStore = intSettings.NewMemoryStore(0)
	}
	if e.eventBus == nil {
		e.log.Debugf("No event bus provided, using NoOp bus.")
		e.eventBus = intEvents.NewNoOpEventBus()
	}
	if e.moduleRegistry == nil {
		e.log.Debugf("No module registry provided, using the default static registry.")
		e.moduleRegistry = module.DefaultRegistry()
	}
	if e.metricsProvider == nil {
		e.metricsProvider = intMetrics.NewPrometheusRegistryProvider()
	}
	if e.tracerProvider == nil {
		e.tracerProvider = intTracing.NewNoOpProvider()
	}
	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}
	if e.scheduler == nil {
		e.ownedScheduler = scheduler.New(scheduler.WithWorkers(e.workerPoolSize), scheduler.WithLogger(e.log))
		e.scheduler = e.ownedScheduler
	}

	e.initMetrics()
	e.retryHelper = retry.NewHelper(e.log)
	e.taskRunner = NewTaskRunner(e.moduleRegistry, e.eventBus, e.retryHelper, e.tracerProvider, e.log)

	return e, nil
}

// Close stops the engine's own scheduler. A scheduler supplied through
// WithScheduler is left running.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.ownedScheduler != nil {
			e.ownedScheduler.Close()
		}
	})
}

func (e *Engine) initMetrics() {
	reg := e.metricsProvider.Registry()
	if reg == nil {
		e.log.Errorf("Metrics provider returned a nil registry, cannot initialize metrics.")
		return
	}

	var err error
	if e.supervision, err = intMetrics.NewSupervision(reg); err != nil {
		e.log.Warnf("Failed to register supervision metrics: %v", err)
	}
	if e.jobCounter, err = intMetrics.Register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "logguard_job_runs_total", Help: "Total number of job runs by final status."},
		[]string{"job_name", "status"},
	)); err != nil {
		e.log.Warnf("Failed to register job counter: %v", err)
	}
	if e.jobDuration, err = intMetrics.Register(reg, prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "logguard_job_run_duration_seconds", Help: "Duration of job runs in seconds.", Buckets: prometheus.DefBuckets},
	)); err != nil {
		e.log.Warnf("Failed to register job duration histogram: %v", err)
	}
	if e.taskCounter, err = intMetrics.Register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "logguard_task_runs_total", Help: "Total number of task runs by final status."},
		[]string{"job_name", "task_name", "status"},
	)); err != nil {
		e.log.Warnf("Failed to register task counter: %v", err)
	}
	if e.taskDuration, err = intMetrics.Register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "logguard_task_run_duration_seconds", Help: "Duration of task runs in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"job_name", "task_name"},
	)); err != nil {
		e.log.Warnf("Failed to register task duration histogram: %v", err)
	}
	if e.taskLogBytes, err = intMetrics.Register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logguard_task_log_bytes",
			Help:    "Final size of task log files in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"job_name"},
	)); err != nil {
		e.log.Warnf("Failed to register task log size histogram: %v", err)
	}
	if e.activeTaskGauge, err = intMetrics.Register(reg, prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "logguard_engine_active_tasks", Help: "Number of tasks currently running."},
	)); err != nil {
		e.log.Warnf("Failed to register active task gauge: %v", err)
	}
	e.log.Debugf("Prometheus metrics initialized and registered.")
}

// RunJob loads, validates and runs a job. A nil error means the job ran;
// the report's OverallStatus says how it went.
func (e *Engine) RunJob(ctx context.Context, jobYAML []byte) (finalReport *lg.JobReport, finalErr error) {
	tracer := e.tracerProvider.GetTracer(tracerName)
	runCtx, span := tracer.Start(ctx, "logguard.job.run")
	defer span.End()

	runID := uuid.NewString()
	startTime := time.Now()
	jobName := ""
	results := &resultSet{byName: make(map[string]lg.TaskResult)}

	defer func() {
		endTime := time.Now()
		finalReport = e.generateReport(runID, jobName, startTime, endTime, results, finalErr)

		if e.jobDuration != nil {
			e.jobDuration.Observe(finalReport.Duration.Seconds())
		}
		if e.jobCounter != nil {
			e.jobCounter.WithLabelValues(jobName, finalReport.OverallStatus).Inc()
		}
		span.SetAttributes(
			intTracing.AttrRunID.String(runID),
			attribute.String("logguard.job.status", finalReport.OverallStatus),
			attribute.Int("logguard.job.total_tasks", finalReport.TotalTasks),
			attribute.Int("logguard.job.failed_tasks", finalReport.FailedTasks),
			attribute.Int("logguard.job.aborted_tasks", finalReport.AbortedTasks),
		)
		if finalErr != nil {
			intTracing.RecordErrorWithContext(span, finalErr)
		} else if finalReport.OverallStatus != lg.StatusCompleted {
			span.SetStatus(codes.Error, finalReport.Error)
		} else {
			span.SetStatus(codes.Ok, "")
		}

		e.eventBus.Emit(events.Event{
			Type: events.JobEnd, Timestamp: endTime, JobName: jobName,
			Payload: map[string]interface{}{"run_id": runID, "status": finalReport.OverallStatus},
		})
		e.log.Infof("Job '%s' finished: %s", jobName, finalReport.OverallStatus)
	}()

	job, err := config.LoadJob(jobYAML, "job.yaml")
	if err != nil {
		e.log.Errorf("Failed to load or validate job: %v", err)
		return nil, err
	}
	jobName = job.Name
	span.SetAttributes(intTracing.AttrJobName.String(job.Name))
	e.log.Infof("Starting job '%s' (run %s, %d tasks)", job.Name, runID, len(job.Tasks))
	e.eventBus.Emit(events.Event{
		Type: events.JobStart, Timestamp: startTime, JobName: job.Name,
		Payload: map[string]interface{}{"run_id": runID, "total_tasks": len(job.Tasks)},
	})

	g, err := guard.New(e.scheduler, e.settingsStore,
		guard.WithCadence(e.checkDelay, e.checkPeriod),
		guard.WithLogger(e.log),
		guard.WithEventBus(e.eventBus),
		guard.WithMetrics(e.supervision),
	)
	if err != nil {
		return nil, err
	}

	for i := range job.Tasks {
		results.set(job.Tasks[i].Name, lg.TaskResult{Status: lg.StatusPending})
	}

	var eg errgroup.Group
	eg.SetLimit(e.workerPoolSize)
	for i := range job.Tasks {
		task := &job.Tasks[i]
		eg.Go(func() error {
			results.set(task.Name, e.runTask(runCtx, g, job, task, runID))
			return nil
		})
	}
	_ = eg.Wait()

	return nil, nil
}

func (e *Engine) runTask(ctx context.Context, g *guard.Guard, job *config.Job, task *config.Task, runID string) lg.TaskResult {
	if e.activeTaskGauge != nil {
		e.activeTaskGauge.Inc()
		defer e.activeTaskGauge.Dec()
	}

	logPath := filepath.Join(e.logDir, runID, task.Name+".log")
	result := e.taskRunner.Run(ctx, RunRequest{
		Job:            job,
		Task:           task,
		TaskID:         runID + "/" + task.InternalID,
		LogPath:        logPath,
		Filesystem:     e.fs,
		Guard:          g,
		DefaultTimeout: e.defaultTimeout,
	})

	if e.taskCounter != nil {
		e.taskCounter.WithLabelValues(job.Name, task.Name, result.Status).Inc()
	}
	if e.taskDuration != nil && result.Duration > 0 {
		e.taskDuration.WithLabelValues(job.Name, task.Name).Observe(result.Duration.Seconds())
	}
	if e.taskLogBytes != nil {
		e.taskLogBytes.WithLabelValues(job.Name).Observe(float64(result.LogBytes))
	}
	return result
}

type resultSet struct {
	mu     sync.Mutex
	byName map[string]lg.TaskResult
}

func (r *resultSet) set(name string, res lg.TaskResult) {
	r.mu.Lock()
	r.byName[name] = res
	r.mu.Unlock()
}

func (r *resultSet) snapshot() map[string]lg.TaskResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]lg.TaskResult, len(r.byName))
	for k, v := range r.byName {
		out[k] = v
	}
	return out
}

func (e *Engine) generateReport(runID, jobName string, start, end time.Time, results *resultSet, runErr error) *lg.JobReport {
	report := &lg.JobReport{
		RunID:         runID,
		JobName:       jobName,
		StartTime:     start,
		EndTime:       end,
		Duration:      end.Sub(start),
		TaskResults:   results.snapshot(),
		OverallStatus: lg.StatusCompleted,
	}
	report.TotalTasks = len(report.TaskResults)

	names := make([]string, 0, len(report.TaskResults))
	for name := range report.TaskResults {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := report.TaskResults[name]
		switch res.Status {
		case lg.StatusCompleted:
			report.CompletedTasks++
		case lg.StatusAborted:
			report.AbortedTasks++
		case lg.StatusFailed:
			report.FailedTasks++
		default:
			e.log.Warnf("Task '%s' found in non-terminal state (%s) during report generation.", name, res.Status)
			res.Error = fmt.Sprintf("task remained in %s state", res.Status)
			res.Status = lg.StatusFailed
			report.TaskResults[name] = res
			report.FailedTasks++
		}
	}

	switch {
	case runErr != nil:
		report.OverallStatus = lg.StatusFailed
		report.Error = runErr.Error()
	case report.FailedTasks > 0:
		report.OverallStatus = lg.StatusFailed
		report.Error = fmt.Sprintf("job finished with %d failed task(s)", report.FailedTasks)
	case report.AbortedTasks > 0:
		report.OverallStatus = lg.StatusAborted
		report.Error = fmt.Sprintf("job finished with %d aborted task(s)", report.AbortedTasks)
	}
	return report
}

func (e *Engine) MetricsRegistryProvider() metrics.RegistryProvider { return e.metricsProvider }
func (e *Engine) TracerProvider() lgtracing.TracerProvider          { return e.tracerProvider }

func (e *Engine) SetSettingsStore(store settings.Store) error {
	if store == nil {
		return lgerrors.NewConfigError("settings store cannot be nil", nil)
	}
	e.settingsStore = store
	return nil
}

func (e *Engine) SetEventBus(bus events.Bus) error {
	if bus == nil {
		return lgerrors.NewConfigError("event bus cannot be nil", nil)
	}
	e.eventBus = bus
	if e.taskRunner != nil {
		e.taskRunner.eventBus = bus
	}
	return nil
}

func (e *Engine) SetModuleRegistry(registry plugin.Registry) error {
	if registry == nil {
		return lgerrors.NewConfigError("module registry cannot be nil", nil)
	}
	e.moduleRegistry = registry
	if e.taskRunner != nil {
		e.taskRunner.registry = registry
	}
	return nil
}

// SetMetricsRegistryProvider must be called before NewEngine finishes to
// take effect; collectors are registered once.
func (e *Engine) SetMetricsRegistryProvider(provider metrics.RegistryProvider) error {
	if provider == nil {
		return lgerrors.NewConfigError("metrics registry provider cannot be nil", nil)
	}
	e.metricsProvider = provider
	return nil
}

func (e *Engine) SetTracerProvider(provider lgtracing.TracerProvider) error {
	if provider == nil {
		return lgerrors.NewConfigError("tracer provider cannot be nil", nil)
	}
	e.tracerProvider = provider
	if e.taskRunner != nil {
		e.taskRunner.tracerProvider = provider
	}
	return nil
}

func (e *Engine) SetScheduler(s supervise.Scheduler) error {
	if s == nil {
		return lgerrors.NewConfigError("scheduler cannot be nil", nil)
	}
	e.scheduler = s
	return nil
}

func (e *Engine) SetFilesystem(fs afero.Fs) error {
	if fs == nil {
		return lgerrors.NewConfigError("filesystem cannot be nil", nil)
	}
	e.fs = fs
	return nil
}

func (e *Engine) SetLogDir(dir string) error {
	if dir == "" {
		return lgerrors.NewConfigError("log directory cannot be empty", nil)
	}
	e.logDir = dir
	return nil
}

func (e *Engine) SetCheckCadence(initialDelay, period time.Duration) error {
	if initialDelay < 0 || period <= 0 {
		return lgerrors.NewConfigError("check cadence requires a non-negative delay and a positive period", nil)
	}
	e.checkDelay = initialDelay
	e.checkPeriod = period
	return nil
}

func (e *Engine) SetDefaultTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return lgerrors.NewConfigError("default timeout cannot be negative", nil)
	}
	e.defaultTimeout = timeout
	return nil
}

func (e *Engine) SetWorkerPoolSize(size int) error {
	if size <= 0 {
		return lgerrors.NewConfigError("worker pool size must be positive", nil)
	}
	e.workerPoolSize = size
	return nil
}
