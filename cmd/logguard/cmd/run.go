package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gxo-labs/logguard/internal/engine"
	"github.com/gxo-labs/logguard/internal/events"
	"github.com/gxo-labs/logguard/internal/metrics"
	"github.com/gxo-labs/logguard/internal/module"
	"github.com/gxo-labs/logguard/internal/settings"
	"github.com/gxo-labs/logguard/internal/tracing"
	lg "github.com/gxo-labs/logguard/pkg/logguard/v1"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"

	_ "github.com/gxo-labs/logguard/modules/cat"
	_ "github.com/gxo-labs/logguard/modules/emit"
	_ "github.com/gxo-labs/logguard/modules/exec"
	_ "github.com/gxo-labs/logguard/modules/sleep"
)

func newRunCmd(a *app) *cobra.Command {
	var jobPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), jobPath)
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "path to the job YAML file (required)")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func (a *app) run(parent context.Context, jobPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	log := a.logger().With("logguard_version", version)
	osFs := afero.NewOsFs()

	jobBytes, err := afero.ReadFile(osFs, jobPath)
	if err != nil {
		return withCode(ExitFailure, fmt.Errorf("failed to read job file '%s': %w", jobPath, err))
	}

	store, err := settings.NewFileStore(osFs, a.settingsPath(), log)
	if err != nil {
		return withCode(ExitFailure, err)
	}
	log.Debugf("Global default log size: %d MB (%s)", store.GlobalDefaultMB(), store.Path())

	runCtx, cancelRun := context.WithCancel(parent)
	defer cancelRun()

	eventBus := events.NewChannelEventBus(defaultEventQueue, log)
	defer eventBus.Close()
	metricsProvider := metrics.NewPrometheusRegistryProvider()
	listener, err := events.NewMetricsEventListener(eventBus, metricsProvider.Registry(), log)
	if err != nil {
		return withCode(ExitFailure, err)
	}
	go listener.Start(runCtx)

	tracerProvider, err := tracing.NewProviderFromEnv(runCtx, log)
	if err != nil {
		log.Warnf("Failed to initialize tracing from environment: %v. Using NoOp tracer.", err)
		tracerProvider = tracing.NewNoOpProvider()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Tracer shutdown: %v", err)
		}
	}()

	if addr := a.v.GetString("metrics_addr"); addr != "" {
		stop := serveMetrics(addr, metricsProvider, log)
		defer stop()
	}

	interval := a.checkInterval()
	eng, err := engine.NewEngine(log,
		lg.WithSettingsStore(store),
		lg.WithEventBus(eventBus),
		lg.WithModuleRegistry(module.DefaultRegistry()),
		lg.WithMetricsRegistryProvider(metricsProvider),
		lg.WithTracerProvider(tracerProvider),
		lg.WithWorkerPoolSize(a.v.GetInt("workers")),
		lg.WithFilesystem(osFs),
		lg.WithLogDir(a.v.GetString("log_dir")),
		lg.WithCheckCadence(interval, interval),
	)
	if err != nil {
		return withCode(ExitFailure, err)
	}
	defer eng.Close()

	sig := watchSignals(cancelRun, log)
	defer sig.stop()

	report, runErr := eng.RunJob(runCtx, jobBytes)
	renderReport(a.stdout, report)

	if s := sig.received(); s != nil {
		if s == syscall.SIGTERM {
			return withCode(ExitSigTerm, nil)
		}
		return withCode(ExitSigInt, nil)
	}
	if runErr != nil {
		return withCode(ExitFailure, runErr)
	}
	switch report.OverallStatus {
	case lg.StatusCompleted:
		return nil
	case lg.StatusAborted:
		return withCode(ExitAborted, errors.New(report.Error))
	default:
		return withCode(ExitFailure, errors.New(report.Error))
	}
}

type signalWatcher struct {
	ch   chan os.Signal
	done chan struct{}
	wg   sync.WaitGroup

	mu  sync.Mutex
	sig os.Signal
}

// watchSignals cancels the run on SIGINT or SIGTERM.
func watchSignals(cancel context.CancelFunc, log lglog.Logger) *signalWatcher {
	w := &signalWatcher{ch: make(chan os.Signal, 1), done: make(chan struct{})}
	signal.Notify(w.ch, syscall.SIGINT, syscall.SIGTERM)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case s := <-w.ch:
			log.Warnf("Received signal: %v. Stopping running tasks...", s)
			w.mu.Lock()
			w.sig = s
			w.mu.Unlock()
			cancel()
		case <-w.done:
		}
	}()
	return w
}

func (w *signalWatcher) received() os.Signal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sig
}

func (w *signalWatcher) stop() {
	signal.Stop(w.ch)
	close(w.done)
	w.wg.Wait()
}

func serveMetrics(addr string, provider *metrics.PrometheusRegistryProvider, log lglog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(provider.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Infof("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func renderReport(w io.Writer, report *lg.JobReport) {
	if report == nil {
		return
	}
	names := make([]string, 0, len(report.TaskResults))
	for name := range report.TaskResults {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(w)
	table.Header("Task", "Status", "Log Size", "Limit", "Duration", "Detail")
	for _, name := range names {
		res := report.TaskResults[name]
		limit := "-"
		if res.ThresholdMB > 0 {
			limit = fmt.Sprintf("%d MB", res.ThresholdMB)
		}
		detail := res.Reason
		if detail == "" {
			detail = res.Error
		}
		_ = table.Append(
			name,
			res.Status,
			humanize.IBytes(res.LogBytes),
			limit,
			res.Duration.Truncate(time.Millisecond).String(),
			detail,
		)
	}
	_ = table.Render()

	fmt.Fprintf(w, "\nJob '%s' %s in %s (run %s): %d completed, %d failed, %d aborted\n",
		report.JobName, report.OverallStatus, report.Duration.Truncate(time.Millisecond),
		report.RunID, report.CompletedTasks, report.FailedTasks, report.AbortedTasks)
	if report.Error != "" {
		fmt.Fprintf(w, "%s\n", report.Error)
	}
}
