package vfskit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinBackends(t *testing.T) {
	names := Backends()
	for _, want := range []string{"fat", "flat", "lfs"} {
		assert.Contains(t, names, want)
	}

	tests := []struct {
		name string
		opts map[string]any
		typ  FSType
	}{
		{"fat", map[string]any{"capacity": 1 << 20, "formatted": true}, TypeFAT},
		{"lfs", map[string]any{"block_size": "512", "block_count": 128.0}, TypeLFS},
		{"flat", map[string]any{"sectors": "16", "sector_size": 512, "label": "DF"}, TypeFlat},
		{"flat", nil, TypeFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.name, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, b.Type())
		})
	}
}

func TestNewBackendErrors(t *testing.T) {
	_, err := NewBackend("tape", nil)
	assert.ErrorIs(t, err, ErrNotSupported)

	_, err = NewBackend("fat", map[string]any{"capacity": 1 << 20, "heads": 4})
	assert.ErrorIs(t, err, ErrInvalid, "unknown keys are rejected")

	_, err = NewBackend("flat", map[string]any{"sectors": "many"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRegisterBackend(t *testing.T) {
	var got map[string]any
	RegisterBackend("test-ram", func(opts map[string]any) (Backend, error) {
		got = opts
		return NewFlatBackendFromConfig(FlatConfig{Sectors: 8}), nil
	})
	t.Cleanup(func() {
		factoryMutex.Lock()
		delete(backendFactories, "test-ram")
		factoryMutex.Unlock()
	})

	b, err := NewBackend("test-ram", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, TypeFlat, b.Type())
	assert.Equal(t, map[string]any{"k": "v"}, got)
	assert.Contains(t, Backends(), "test-ram")
}
