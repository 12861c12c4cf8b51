// Package hotplug simulates card-detect lines with marker files. A
// Detector watches a directory; creating a slot's marker file inserts the
// card and mounts its drive, removing or renaming it unmounts the drive.
package hotplug

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Mounter attaches and detaches drives by path. *vfskit.Registry
// satisfies it.
type Mounter interface {
	Mount(path string, mount bool) error
}

// Config describes a Detector.
type Config struct {
	// Dir is the watched directory.
	Dir string
	// Slots maps marker file names to drive prefixes.
	Slots map[string]string
	// OnPresence runs before the drive is mounted or after it is
	// unmounted, e.g. to insert or eject a simulated medium.
	OnPresence func(prefix string, present bool)
	// Lock serializes Mount calls with other users of the Mounter.
	Lock sync.Locker
	Log  logrus.FieldLogger
}

// Detector turns marker file events into Mount calls.
type Detector struct {
	cfg     Config
	m       Mounter
	watcher *fsnotify.Watcher
	log     logrus.FieldLogger
}

// New starts watching cfg.Dir. Call Run to process events and Close to
// stop.
func New(m Mounter, cfg Config) (*Detector, error) {
	if m == nil {
		return nil, errors.New("hotplug: nil mounter")
	}
	if len(cfg.Slots) == 0 {
		return nil, errors.New("hotplug: no slots configured")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(cfg.Dir); err != nil {
		w.Close()
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Detector{cfg: cfg, m: m, watcher: w, log: log}, nil
}

// Run mounts the slots whose marker already exists, then follows changes
// until ctx is done or the detector is closed.
func (d *Detector) Run(ctx context.Context) error {
	for name, prefix := range d.cfg.Slots {
		if _, err := os.Stat(filepath.Join(d.cfg.Dir, name)); err == nil {
			d.set(prefix, true)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			prefix, known := d.cfg.Slots[filepath.Base(event.Name)]
			if !known {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				d.set(prefix, true)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				d.set(prefix, false)
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.log.WithError(err).Warn("[VFS] Card detect watcher error")
		}
	}
}

func (d *Detector) set(prefix string, present bool) {
	if d.cfg.Lock != nil {
		d.cfg.Lock.Lock()
		defer d.cfg.Lock.Unlock()
	}
	if present && d.cfg.OnPresence != nil {
		d.cfg.OnPresence(prefix, true)
	}
	err := d.m.Mount(prefix, present)
	if !present && d.cfg.OnPresence != nil {
		d.cfg.OnPresence(prefix, false)
	}
	entry := d.log.WithFields(logrus.Fields{"drive": prefix, "present": present})
	if err != nil {
		entry.WithError(err).Debug("[VFS] Card detect mount change failed")
		return
	}
	entry.Debug("[VFS] Card detect")
}

// Close stops the watcher; a running Run returns.
func (d *Detector) Close() error {
	return d.watcher.Close()
}
