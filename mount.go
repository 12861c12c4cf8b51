package vfskit

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyPrefix is returned when a drive spec has no prefix
	ErrEmptyPrefix = errors.New("drive prefix cannot be empty")
	// ErrNilBackend is returned when a drive spec has no backend
	ErrNilBackend = errors.New("backend cannot be nil")
	// ErrDuplicatePrefix is returned when two drives share a prefix
	ErrDuplicatePrefix = errors.New("drive prefix already exists")
)

// Registry owns the drive table and dispatches every filesystem call to
// the backend of the drive named by the path prefix.
//
// The table is fixed at construction; only the mount state of its drives
// changes. Mount, Format, Init and Close mutate shared state and must be
// serialized by the caller. File and Dir handles belong to the caller
// that opened them.
type Registry struct {
	drives   []*Drive
	log      logrus.FieldLogger
	metrics  Metrics
	now      func() time.Time
	layout   InodeLayout
	copyBuf  int
	onEvent  EventFunc
	watchers *watchers
}

// NewRegistry builds the drive table. Drives start unmounted; call Init or
// Mount to attach them.
func NewRegistry(specs []DriveSpec, opts ...Option) (*Registry, error) {
	r := &Registry{
		log:      logrus.StandardLogger(),
		metrics:  NewNoopMetrics(),
		now:      time.Now,
		layout:   DefaultInodeLayout,
		copyBuf:  DefaultCopyBufferSize,
		watchers: newWatchers(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.layout.validate(); err != nil {
		return nil, err
	}
	if len(specs) > r.layout.MaxDrives() {
		return nil, fmt.Errorf("%w: %d drives exceed the %d the inode layout can number",
			ErrInvalid, len(specs), r.layout.MaxDrives())
	}

	for _, spec := range specs {
		if strings.Trim(spec.Prefix, ": ") == "" {
			return nil, ErrEmptyPrefix
		}
		if spec.Backend == nil {
			return nil, fmt.Errorf("%w: %s", ErrNilBackend, spec.Prefix)
		}
		d := newDrive(spec)
		for _, other := range r.drives {
			if strings.EqualFold(other.prefix, d.prefix) {
				return nil, fmt.Errorf("%w: %s", ErrDuplicatePrefix, d.prefix)
			}
		}
		r.drives = append(r.drives, d)
	}
	return r, nil
}

// resolve finds the drive for path. Strict resolution only considers
// mounted drives; forced resolution returns the table row regardless of
// its mount state. With a single drive in the table a path without a
// colon resolves to that drive.
func (r *Registry) resolve(path string, force bool) (*Drive, error) {
	for i, d := range r.drives {
		if d.hasPrefix(path) && (force || d.index == i+1) {
			return d, nil
		}
	}
	if len(r.drives) == 1 && !strings.Contains(path, ":") {
		d := r.drives[0]
		if force || d.index == 1 {
			return d, nil
		}
	}
	return nil, ErrNoDevice
}

// Drives returns the drive table in order.
func (r *Registry) Drives() []*Drive {
	out := make([]*Drive, len(r.drives))
	copy(out, r.drives)
	return out
}

// Volume returns the prefix of the n-th drive (0-based).
func (r *Registry) Volume(n int) (string, bool) {
	if n < 0 || n >= len(r.drives) {
		return "", false
	}
	return r.drives[n].prefix, true
}

// Mount attaches (mount true) or detaches (mount false) the drive named by
// path. Detaching an unmounted drive succeeds. Attaching an already
// mounted drive mounts it afresh.
func (r *Registry) Mount(path string, mount bool) error {
	d, err := r.resolve(path, true)
	if err != nil {
		return pathErr("mount", path, err)
	}
	if !mount {
		err = r.detach(d)
		r.emit(d, EventUnmounted, err)
		r.metrics.ObserveOp(d.prefix, "unmount", err)
		return pathErr("unmount", path, err)
	}

	if d.vol != nil {
		_ = r.detach(d)
	}
	err = r.attach(d)
	r.metrics.ObserveOp(d.prefix, "mount", err)
	if err != nil {
		r.emit(d, EventMountFailed, err)
		return pathErr("mount", path, err)
	}
	r.emit(d, EventMounted, nil)
	return nil
}

func (r *Registry) position(d *Drive) int {
	for i, x := range r.drives {
		if x == d {
			return i
		}
	}
	return -1
}

// attach mounts d without firing events.
func (r *Registry) attach(d *Drive) error {
	vol, err := d.backend.Mount(d.prefix, d.fixed)
	if err != nil {
		d.vol, d.index = nil, 0
		return err
	}
	d.vol, d.index = vol, r.position(d)+1
	r.metrics.SetMounted(d.prefix, true)
	return nil
}

// detach releases the volume of d. The drive ends up unmounted even when
// the backend reports an error.
func (r *Registry) detach(d *Drive) error {
	if d.vol == nil {
		d.index = 0
		return nil
	}
	err := d.vol.Unmount()
	d.vol, d.index = nil, 0
	r.metrics.SetMounted(d.prefix, false)
	return err
}

// Format writes an empty filesystem to the drive named by path. A mounted
// drive is remounted afterwards.
func (r *Registry) Format(path string) error {
	d, err := r.resolve(path, true)
	if err != nil {
		return pathErr("format", path, err)
	}
	if d.readOnly {
		return pathErr("format", path, ErrReadOnly)
	}

	wasMounted := d.vol != nil
	if wasMounted {
		if err := r.detach(d); err != nil {
			r.log.WithError(err).Debugf("[VFS] Unmount before format of %s", d.prefix)
		}
	}
	err = d.backend.Format(d.prefix)
	r.metrics.ObserveOp(d.prefix, "format", err)
	if err != nil {
		if wasMounted {
			_ = r.attach(d)
		}
		return pathErr("format", path, err)
	}
	r.log.WithField("drive", d.prefix).Infof("[VFS] Formatted %s (%s)", d.prefix, d.Type())
	if wasMounted {
		return pathErr("format", path, r.attach(d))
	}
	return nil
}

// CheckLock reports ErrBusy while the backend holds the volume lock of the
// drive named by path. The check is advisory.
func (r *Registry) CheckLock(path string) error {
	d, err := r.resolve(path, true)
	if err != nil {
		return pathErr("checklock", path, err)
	}
	if d.vol != nil && d.vol.Locked() {
		return pathErr("checklock", path, ErrBusy)
	}
	return nil
}

// Init mounts every drive. Removable drives that fail are left unmounted.
// A fixed drive with AutoFormat that has no filesystem is formatted,
// labelled and mounted again. Init returns the failures of fixed drives.
func (r *Registry) Init() error {
	var errs []error
	for _, d := range r.drives {
		err := r.Mount(d.prefix, true)
		if err != nil && d.fixed && d.autoFormat && errors.Is(err, ErrNoFilesystem) && !d.readOnly {
			err = r.autoFormat(d)
		}
		if err != nil {
			_ = r.detach(d)
			if d.fixed {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) autoFormat(d *Drive) error {
	r.log.WithField("drive", d.prefix).Warnf("[VFS] No filesystem on %s, formatting", d.prefix)
	if err := r.Format(d.prefix); err != nil {
		return err
	}
	if err := r.Mount(d.prefix, true); err != nil {
		return err
	}
	label := d.label
	if label == "" {
		label = defaultLabel(d)
	}
	if err := d.vol.SetLabel(label); err != nil && !errors.Is(err, ErrNotSupported) {
		r.log.WithError(err).Warnf("[VFS] Labelling %s failed", d.prefix)
	}
	return nil
}

// defaultLabel derives a label from the prefix and a random serial.
func defaultLabel(d *Drive) string {
	name := strings.TrimSuffix(d.prefix, ":")
	return fmt.Sprintf("%s%04X", name, newSerial()&0xFFFF)
}

func newSerial() uint32 {
	return uuid.New().ID()
}

// Close unmounts every drive and releases backends that hold storage of
// their own.
func (r *Registry) Close() error {
	var errs []error
	for _, d := range r.drives {
		if d.vol != nil {
			if err := r.Mount(d.prefix, false); err != nil {
				errs = append(errs, err)
			}
		}
		if c, ok := d.backend.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", d.prefix, err))
			}
		}
	}
	return errors.Join(errs...)
}
