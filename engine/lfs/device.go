// Package lfs is a log-structured flash engine with littlefs-style entry
// points and negative status codes. Metadata, file data and custom
// attributes are kept in a badger key-value store that plays the part of
// the flash device.
package lfs

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Key namespaces:
//
//	"sb"                  superblock (JSON)
//	"e:<path>"            entry (JSON)
//	"d:<id>"              file contents
//	"a:<path>\x00<type>"  custom attribute
const (
	keySuperblock = "sb"
	prefixEntry   = "e:"
	prefixData    = "d:"
	prefixAttr    = "a:"
)

// DeviceConfig describes the simulated flash geometry.
type DeviceConfig struct {
	// Dir is the badger directory. Empty keeps the device in memory.
	Dir string

	BlockSize  int64
	BlockCount int64
}

// Device is the storage behind a littlefs volume.
type Device struct {
	db  *badger.DB
	cfg DeviceConfig
}

// OpenDevice opens (or creates) the device storage.
func OpenDevice(cfg DeviceConfig) (*Device, error) {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 4096
	}
	if cfg.BlockCount <= 0 {
		cfg.BlockCount = 256
	}

	var opts badger.Options
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open flash store: %w", err)
	}
	return &Device{db: db, cfg: cfg}, nil
}

// Config returns the device geometry.
func (d *Device) Config() DeviceConfig {
	return d.cfg
}

// Close releases the device storage.
func (d *Device) Close() error {
	return d.db.Close()
}

// Erase wipes every key, leaving an unformatted device.
func (d *Device) Erase() error {
	return d.db.DropAll()
}

func get(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoEnt
	}
	if err != nil {
		return nil, ErrIO
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, ErrIO
	}
	return val, nil
}

// keys returns every key under prefix.
func keys(txn *badger.Txn, prefix string) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	var out []string
	for it.Rewind(); it.Valid(); it.Next() {
		out = append(out, string(it.Item().KeyCopy(nil)))
	}
	return out
}
