package vfskit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gobeaver/beaver-kit/config"
	"github.com/gobeaver/vfskit/internal/drivetable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Global instance
var (
	defaultReg  *Registry
	defaultOnce sync.Once
	defaultErr  error
)

// Builder provides a way to create Registry instances with custom prefixes
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Init initializes the global Registry using the builder's prefix
func (b *Builder) Init() error {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return err
	}
	return Init(cfg)
}

// New creates a new Registry using the builder's prefix
func (b *Builder) New() (*Registry, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return New(cfg)
}

// Init initializes the global registry
func Init(configs ...*Config) error {
	defaultOnce.Do(func() {
		var cfg *Config
		if len(configs) > 0 {
			cfg = configs[0]
		} else {
			cfg, defaultErr = GetConfig()
			if defaultErr != nil {
				return
			}
		}

		defaultReg, defaultErr = New(cfg)
	})

	return defaultErr
}

// New builds a registry from cfg and mounts its drives. Failures of fixed
// drives are returned together with the registry, which stays usable for
// the drives that did mount.
func New(cfg *Config, opts ...Option) (*Registry, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logrus.New()
	log.SetLevel(level)

	base := []Option{WithLogger(log), WithCopyBufferSize(cfg.CopyBuffer)}
	if cfg.Metrics {
		base = append(base, WithMetrics(NewPrometheusMetrics(prometheus.DefaultRegisterer)))
	}

	specs, err := driveSpecs(cfg)
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(specs, append(base, opts...)...)
	if err != nil {
		closeBackends(specs)
		return nil, err
	}
	if err := reg.Init(); err != nil {
		return reg, err
	}
	return reg, nil
}

// validateConfig checks configuration validity
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.CopyBuffer < 0 {
		return fmt.Errorf("copy buffer must not be negative (got %d)", cfg.CopyBuffer)
	}
	return nil
}

// driveSpecs turns the configured drive table into specs with live
// backends.
func driveSpecs(cfg *Config) ([]DriveSpec, error) {
	tbl := drivetable.Default()
	if cfg.DrivesFile != "" {
		var err error
		if tbl, err = drivetable.Load(cfg.DrivesFile); err != nil {
			return nil, err
		}
	}

	specs := make([]DriveSpec, 0, len(tbl.Drives))
	for _, row := range tbl.Drives {
		b, err := NewBackend(row.Type, row.Options)
		if err != nil {
			closeBackends(specs)
			return nil, fmt.Errorf("drive %s: %w", row.Prefix, err)
		}
		specs = append(specs, DriveSpec{
			Prefix:     row.Prefix,
			Backend:    b,
			Fixed:      row.Fixed,
			ReadOnly:   row.ReadOnly,
			Label:      row.Label,
			AutoFormat: row.AutoFormat && cfg.AutoFormat,
		})
	}
	return specs, nil
}

func closeBackends(specs []DriveSpec) {
	for _, s := range specs {
		if c, ok := s.Backend.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}

// Default returns the global registry, initializing it from the
// environment if needed
func Default() (*Registry, error) {
	if defaultReg == nil {
		if err := Init(); err != nil {
			return defaultReg, err
		}
	}
	return defaultReg, nil
}

// Reset closes and clears the global registry (for testing)
func Reset() {
	if defaultReg != nil {
		_ = defaultReg.Close()
	}
	defaultReg = nil
	defaultOnce = sync.Once{}
	defaultErr = nil
}
