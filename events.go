package vfskit

import (
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Event is a mount state change reported to drive callbacks.
type Event int

const (
	EventMounted Event = iota + 1
	EventUnmounted
	EventMountFailed
)

func (e Event) String() string {
	switch e {
	case EventMounted:
		return "mounted"
	case EventUnmounted:
		return "unmounted"
	case EventMountFailed:
		return "mount failed"
	default:
		return "unknown"
	}
}

// EventFunc is called synchronously from Mount.
type EventFunc func(d *Drive, ev Event)

func (r *Registry) emit(d *Drive, ev Event, err error) {
	r.logEvent(d, ev, err)
	if d.onEvent != nil {
		d.onEvent(d, ev)
	} else if r.onEvent != nil {
		r.onEvent(d, ev)
	}
}

func (r *Registry) logEvent(d *Drive, ev Event, err error) {
	entry := r.log.WithFields(logrus.Fields{"drive": d.prefix, "type": d.Type().String()})
	switch ev {
	case EventMounted:
		u, uerr := d.vol.Usage()
		if uerr != nil {
			entry.Infof("[VFS] Mounted %s", d.prefix)
			return
		}
		entry.Infof("[VFS] Mounted %s %s, %s free (%s)", d.prefix,
			humanize.Bytes(uint64(u.Total)), humanize.Bytes(uint64(u.Free)), d.Type())
	case EventUnmounted:
		entry.Infof("[VFS] Unmounted %s", d.prefix)
	case EventMountFailed:
		if d.fixed {
			entry.WithError(err).Warnf("[VFS] Mounting %s failed", d.prefix)
		} else {
			entry.WithError(err).Debugf("[VFS] Mounting %s failed", d.prefix)
		}
	}
}
