package vfskit

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	preg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(preg)
	r := newTestRegistry(t, testDrives(t), WithMetrics(m))
	pm := m.(*promMetrics)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.mounted.WithLabelValues("SD:")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.mounted.WithLabelValues("DF:")))

	writeFile(t, r, "SD:/m.txt", "12345")
	assert.Equal(t, "12345", readFile(t, r, "SD:/m.txt"))
	_, err := r.Open("SD:/none.txt", OpenRead)
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.ops.WithLabelValues("SD:", "open", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.ops.WithLabelValues("SD:", "open", "file_does_not_exist")))
	assert.Equal(t, 5.0, testutil.ToFloat64(pm.bytes.WithLabelValues("SD:", "write")))
	assert.Equal(t, 5.0, testutil.ToFloat64(pm.bytes.WithLabelValues("SD:", "read")))

	require.NoError(t, r.Mount("SD:", false))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.mounted.WithLabelValues("SD:")))
}

func TestPrometheusMetricsShareCollectors(t *testing.T) {
	preg := prometheus.NewRegistry()
	a := NewPrometheusMetrics(preg).(*promMetrics)
	b := NewPrometheusMetrics(preg).(*promMetrics)
	assert.Same(t, a.ops, b.ops)

	a.ObserveOp("SD:", "mkdir", nil)
	b.ObserveOp("SD:", "mkdir", nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.ops.WithLabelValues("SD:", "mkdir", "ok")))

	assert.Equal(t, "no_space_left_on_device", statusLabel(pathErr("write", "SD:/x", ErrNoSpace)))
	assert.IsType(t, noopMetrics{}, NewPrometheusMetrics(nil))
}
