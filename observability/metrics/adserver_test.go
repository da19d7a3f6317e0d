package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type stubEvent string

func (s stubEvent) EventType() string { return string(s) }

func TestAdServerMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAdServer(reg)

	m.ObserveCommand("serve_ad", time.Now(), nil)
	m.ObserveCommand("serve_ad", time.Now(), errors.New("boom"))
	m.ObserveQuery("ads", time.Now(), nil)
	m.Emit(stubEvent("serve_ad"))
	m.Emit(stubEvent("serve_ad"))
	m.Emit(stubEvent(""))

	require.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("serve_ad", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("serve_ad", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("ads", "ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("serve_ad")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("unknown")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.served))

	m.SetTotalViews(7)
	require.Equal(t, 7.0, testutil.ToFloat64(m.total))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *AdServerMetrics
	m.ObserveCommand("x", time.Now(), nil)
	m.ObserveQuery("x", time.Now(), nil)
	m.Emit(stubEvent("x"))
	m.SetTotalViews(1)
}
