package vfskit

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// BackendFactory creates a Backend from the options of a drive table row.
type BackendFactory func(opts map[string]any) (Backend, error)

var (
	backendFactories = make(map[string]BackendFactory)
	factoryMutex     sync.RWMutex
)

func init() {
	RegisterBackend("fat", func(opts map[string]any) (Backend, error) {
		var cfg FATConfig
		if err := decodeOptions(opts, &cfg); err != nil {
			return nil, err
		}
		return NewFATBackendFromConfig(cfg), nil
	})
	RegisterBackend("lfs", func(opts map[string]any) (Backend, error) {
		var cfg LFSConfig
		if err := decodeOptions(opts, &cfg); err != nil {
			return nil, err
		}
		return OpenLFSBackend(cfg)
	})
	RegisterBackend("flat", func(opts map[string]any) (Backend, error) {
		var cfg FlatConfig
		if err := decodeOptions(opts, &cfg); err != nil {
			return nil, err
		}
		return NewFlatBackendFromConfig(cfg), nil
	})
}

// RegisterBackend registers a backend factory under name, replacing any
// earlier registration.
func RegisterBackend(name string, factory BackendFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	backendFactories[name] = factory
}

// NewBackend creates a backend with the factory registered under name.
func NewBackend(name string, opts map[string]any) (Backend, error) {
	factoryMutex.RLock()
	factory, exists := backendFactories[name]
	factoryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: backend %s not registered", ErrNotSupported, name)
	}
	return factory(opts)
}

// Backends returns the registered factory names in sorted order.
func Backends() []string {
	factoryMutex.RLock()
	defer factoryMutex.RUnlock()
	names := make([]string, 0, len(backendFactories))
	for name := range backendFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeOptions fills out from a loosely typed option map, so that values
// read from YAML or the environment ("4096", 4096.0) both work.
func decodeOptions(opts map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(opts); err != nil {
		return fmt.Errorf("%w: backend options: %v", ErrInvalid, err)
	}
	return nil
}
