package vfskit

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultCopyBufferSize is the chunk size used by Copy.
const DefaultCopyBufferSize = 128

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger used for mount events and debug traces.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithClock sets the time source for modification stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithInodeLayout overrides DefaultInodeLayout.
func WithInodeLayout(l InodeLayout) Option {
	return func(r *Registry) {
		r.layout = l
	}
}

// WithCopyBufferSize sets the chunk size used by Copy and CRC.
func WithCopyBufferSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.copyBuf = n
		}
	}
}

// WithEventHandler sets the callback for drives that have none of their
// own.
func WithEventHandler(fn EventFunc) Option {
	return func(r *Registry) {
		r.onEvent = fn
	}
}
