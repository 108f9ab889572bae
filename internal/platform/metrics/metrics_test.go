package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.MovementRegistered("in")
	m.MovementRegistered("in")
	m.MovementRegistered("out")
	m.SettingsCreated()
	m.AlertDispatched("email", true)
	m.AlertDispatched("email", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.movements.WithLabelValues("in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.movements.WithLabelValues("out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.settingsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertsSent.WithLabelValues("email", "failed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MovementRegistered("in")
		m.SettingsCreated()
		m.AlertDispatched("sms", true)
		m.ObserveHTTP("GET", "/health", "200", 0.01)
	})
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = New()
		_ = New()
	})
}
