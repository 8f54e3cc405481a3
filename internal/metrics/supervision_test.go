package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervision_NilIsNoOp(t *testing.T) {
	var s *Supervision
	assert.NotPanics(t, func() {
		s.ObserveCheck()
		s.ObserveReadFailure()
		s.ObserveInterrupt("Aborted")
		s.MonitorAttached()
		s.MonitorDetached()
		s.ObserveAttachRejected()
	})
}

func TestSupervision_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewSupervision(reg)
	require.NoError(t, err)

	s.ObserveCheck()
	s.ObserveCheck()
	s.ObserveReadFailure()
	s.ObserveInterrupt("Failed")
	s.MonitorAttached()
	s.MonitorAttached()
	s.MonitorDetached()

	assert.Equal(t, 2.0, testutil.ToFloat64(s.checks))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.readFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.interrupts.WithLabelValues("Failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.activeMonitors))
}

func TestSupervision_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewSupervision(reg)
	require.NoError(t, err)
	b, err := NewSupervision(reg)
	require.NoError(t, err)

	a.MonitorAttached()
	b.MonitorAttached()
	assert.Equal(t, 2.0, testutil.ToFloat64(a.activeMonitors))
}
