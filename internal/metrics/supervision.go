package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Supervision groups the collectors updated by log size monitors and the
// lifecycle guard. A nil *Supervision is valid and records nothing.
type Supervision struct {
	checks         prometheus.Counter
	readFailures   prometheus.Counter
	interrupts     *prometheus.CounterVec
	activeMonitors prometheus.Gauge
	attachRejected prometheus.Counter
}

// NewSupervision creates the collectors and registers them with reg.
func NewSupervision(reg prometheus.Registerer) (*Supervision, error) {
	s := &Supervision{}
	var err error

	if s.checks, err = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logguard_monitor_checks_total",
		Help: "Total number of log size samples taken by monitors.",
	})); err != nil {
		return nil, err
	}
	if s.readFailures, err = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logguard_monitor_read_failures_total",
		Help: "Total number of log size samples skipped because the size could not be read.",
	})); err != nil {
		return nil, err
	}
	if s.interrupts, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logguard_monitor_interrupts_total",
		Help: "Total number of tasks interrupted for exceeding their log size threshold, by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if s.activeMonitors, err = Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "logguard_monitors_active",
		Help: "Number of log size monitors currently scheduled.",
	})); err != nil {
		return nil, err
	}
	if s.attachRejected, err = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logguard_monitor_attach_rejected_total",
		Help: "Total number of attach calls rejected because the task already had a monitor.",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Supervision) ObserveCheck() {
	if s != nil {
		s.checks.Inc()
	}
}

func (s *Supervision) ObserveReadFailure() {
	if s != nil {
		s.readFailures.Inc()
	}
}

func (s *Supervision) ObserveInterrupt(outcome string) {
	if s != nil {
		s.interrupts.WithLabelValues(outcome).Inc()
	}
}

func (s *Supervision) MonitorAttached() {
	if s != nil {
		s.activeMonitors.Inc()
	}
}

func (s *Supervision) MonitorDetached() {
	if s != nil {
		s.activeMonitors.Dec()
	}
}

func (s *Supervision) ObserveAttachRejected() {
	if s != nil {
		s.attachRejected.Inc()
	}
}
