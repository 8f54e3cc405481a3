package events

import (
	"context"

	intMetrics "github.com/gxo-labs/logguard/internal/metrics"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/events"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsEventListener consumes a ChannelEventBus and turns events into
// Prometheus counters.
type MetricsEventListener struct {
	bus      *ChannelEventBus
	log      lglog.Logger
	events   *prometheus.CounterVec
	exceeded *prometheus.CounterVec
}

// NewMetricsEventListener creates a listener whose counters are registered
// with reg.
func NewMetricsEventListener(bus *ChannelEventBus, reg prometheus.Registerer, log lglog.Logger) (*MetricsEventListener, error) {
	if bus == nil || reg == nil || log == nil {
		panic("MetricsEventListener requires a non-nil ChannelEventBus, Registerer, and Logger")
	}
	eventsTotal, err := intMetrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logguard_events_total",
		Help: "Total number of engine events observed, by type.",
	}, []string{"type"}))
	if err != nil {
		return nil, err
	}
	exceeded, err := intMetrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logguard_log_size_exceeded_total",
		Help: "Total number of log size threshold crossings observed, by job and outcome.",
	}, []string{"job_name", "outcome"}))
	if err != nil {
		return nil, err
	}
	return &MetricsEventListener{
		bus:      bus,
		log:      log.With("component", "MetricsEventListener"),
		events:   eventsTotal,
		exceeded: exceeded,
	}, nil
}

// Start consumes events until the bus is closed or ctx is done. Run it in
// its own goroutine.
func (l *MetricsEventListener) Start(ctx context.Context) {
	l.log.Debugf("Starting metrics event listener...")
	for {
		select {
		case event, ok := <-l.bus.GetChannel():
			if !ok {
				l.log.Debugf("Event bus channel closed, stopping listener.")
				return
			}
			l.handleEvent(event)
		case <-ctx.Done():
			l.log.Debugf("Context cancelled, stopping metrics event listener.")
			return
		}
	}
}

func (l *MetricsEventListener) handleEvent(event events.Event) {
	l.events.WithLabelValues(string(event.Type)).Inc()
	switch event.Type {
	case events.LogSizeExceeded:
		outcome, _ := event.Payload["outcome"].(string)
		l.exceeded.WithLabelValues(event.JobName, outcome).Inc()
	}
}
