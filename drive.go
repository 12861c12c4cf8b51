package vfskit

import (
	"strings"
)

// DriveSpec describes one row of the drive table.
type DriveSpec struct {
	// Prefix names the drive, e.g. "SD:". A missing trailing colon is
	// added.
	Prefix  string
	Backend Backend
	// Fixed marks non-removable media.
	Fixed    bool
	ReadOnly bool
	// Label is applied after an automatic format.
	Label string
	// AutoFormat formats a fixed drive that has no filesystem during Init.
	AutoFormat bool
	OnEvent    EventFunc
}

// Drive is one mountable volume. The backend volume exists exactly while
// the drive is mounted, i.e. while its index is non-zero.
type Drive struct {
	prefix     string
	backend    Backend
	vol        Volume
	fixed      bool
	readOnly   bool
	label      string
	autoFormat bool
	index      int
	onEvent    EventFunc
}

func newDrive(spec DriveSpec) *Drive {
	prefix := strings.TrimSpace(spec.Prefix)
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Drive{
		prefix:     prefix,
		backend:    spec.Backend,
		fixed:      spec.Fixed,
		readOnly:   spec.ReadOnly,
		label:      spec.Label,
		autoFormat: spec.AutoFormat,
		onEvent:    spec.OnEvent,
	}
}

// Prefix returns the drive prefix including the colon.
func (d *Drive) Prefix() string { return d.prefix }

// Type returns the engine family.
func (d *Drive) Type() FSType { return d.backend.Type() }

// Backend returns the backend serving the drive.
func (d *Drive) Backend() Backend { return d.backend }

// Index returns the 1-based mount index, 0 when unmounted.
func (d *Drive) Index() int { return d.index }

// Mounted reports whether the drive holds a live volume.
func (d *Drive) Mounted() bool { return d.index != 0 && d.vol != nil }

// Fixed reports whether the medium is non-removable.
func (d *Drive) Fixed() bool { return d.fixed }

// ReadOnly reports whether mutating operations are refused.
func (d *Drive) ReadOnly() bool { return d.readOnly }

func (d *Drive) String() string { return d.prefix }

// hasPrefix reports whether path starts with the drive prefix.
func (d *Drive) hasPrefix(path string) bool {
	return len(path) >= len(d.prefix) && strings.EqualFold(path[:len(d.prefix)], d.prefix)
}

// rest returns path without the drive prefix.
func (d *Drive) rest(path string) string {
	if d.hasPrefix(path) {
		return path[len(d.prefix):]
	}
	return path
}

// isRoot reports whether path names the drive root.
func (d *Drive) isRoot(path string) bool {
	return strings.Trim(d.rest(path), `/\`) == ""
}

// fix converts path to the form the backend expects.
func (d *Drive) fix(path string) string {
	if d.backend.PathStyle() == FullPath {
		return path
	}
	return strings.TrimLeft(strings.ReplaceAll(d.rest(path), `\`, "/"), "/")
}
