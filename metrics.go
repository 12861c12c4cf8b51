package vfskit

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics receives per-operation observations. Implementations must be
// safe for concurrent use.
type Metrics interface {
	ObserveOp(drive, op string, err error)
	AddBytes(drive, direction string, n int)
	SetMounted(drive string, mounted bool)
}

type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) ObserveOp(string, string, error) {}
func (noopMetrics) AddBytes(string, string, int) {}
func (noopMetrics) SetMounted(string, bool) {}

type promMetrics struct {
	ops     *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	mounted *prometheus.GaugeVec
}

// NewPrometheusMetrics registers the vfs collectors with reg. Collectors
// already registered by an earlier registry are shared. A nil reg yields a
// no-op implementation.
func NewPrometheusMetrics(reg prometheus.Registerer) Metrics {
	if reg == nil {
		return NewNoopMetrics()
	}
	return &promMetrics{
		ops: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vfs_operations_total",
				Help: "Total number of filesystem operations by drive, operation and status",
			},
			[]string{"drive", "op", "status"},
		)),
		bytes: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vfs_bytes_total",
				Help: "Bytes transferred through file handles",
			},
			[]string{"drive", "direction"},
		)),
		mounted: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vfs_drive_mounted",
				Help: "1 while the drive is mounted",
			},
			[]string{"drive"},
		)),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ReplaceAll(KindOf(err).String(), " ", "_")
}

func (m *promMetrics) ObserveOp(drive, op string, err error) {
	m.ops.WithLabelValues(drive, op, statusLabel(err)).Inc()
}

func (m *promMetrics) AddBytes(drive, direction string, n int) {
	if n > 0 {
		m.bytes.WithLabelValues(drive, direction).Add(float64(n))
	}
}

func (m *promMetrics) SetMounted(drive string, mounted bool) {
	v := 0.0
	if mounted {
		v = 1
	}
	m.mounted.WithLabelValues(drive).Set(v)
}
