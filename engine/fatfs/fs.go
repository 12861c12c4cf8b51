package fatfs

import (
	"strings"
	"sync"
	"time"

	"github.com/gobeaver/vfskit/fattime"
)

const maxLabel = 11

var equalFold = strings.EqualFold

func packTime(t time.Time) (uint16, uint16) {
	return fattime.FromTime(t)
}

// FileInfo describes a directory entry.
type FileInfo struct {
	Name    string
	Size    int64
	Attrib  byte
	Fdate   uint16
	Ftime   uint16
	Crdate  uint16
	Crtime  uint16
	Cluster uint32
}

func infoOf(n *node) FileInfo {
	return FileInfo{
		Name:    n.name,
		Size:    int64(len(n.data)),
		Attrib:  n.attr,
		Fdate:   n.fdate,
		Ftime:   n.ftime,
		Crdate:  n.crdate,
		Crtime:  n.crtime,
		Cluster: n.cluster,
	}
}

// FS is the work area of one mounted volume.
type FS struct {
	sobj    sync.Mutex
	medium  *Medium
	drive   string
	mounted bool
}

// Mount registers the medium under drive (e.g. "SD:") and checks the
// volume. A nil medium unregisters the work area.
func (fs *FS) Mount(m *Medium, drive string) Result {
	fs.sobj.Lock()
	defer fs.sobj.Unlock()

	if m == nil {
		fs.medium, fs.mounted = nil, false
		return OK
	}
	fs.medium, fs.drive = m, drive

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		fs.mounted = false
		return NotReady
	}
	if !m.formatted {
		fs.mounted = false
		return NoFilesystem
	}
	fs.mounted = true
	return OK
}

// Unmount releases the work area.
func (fs *FS) Unmount() Result {
	return fs.Mount(nil, "")
}

// Mkfs creates an empty volume on the medium.
func Mkfs(m *Medium) Result {
	if m == nil {
		return InvalidParameter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		return NotReady
	}
	if m.writeProtect {
		return WriteProtected
	}
	if m.capacity < 4*m.clusterSize {
		return MkfsAborted
	}
	m.format()
	return OK
}

// Locked reports whether another caller currently holds the volume mutex.
func (fs *FS) Locked() bool {
	if fs.sobj.TryLock() {
		fs.sobj.Unlock()
		return false
	}
	return true
}

// enter takes the volume mutex and the medium lock and validates the
// volume state.
func (fs *FS) enter(write bool) (func(), Result) {
	fs.sobj.Lock()
	if !fs.mounted || fs.medium == nil {
		fs.sobj.Unlock()
		return nil, NotEnabled
	}
	m := fs.medium
	m.mu.Lock()
	leave := func() {
		m.mu.Unlock()
		fs.sobj.Unlock()
	}
	if !m.present {
		leave()
		return nil, NotReady
	}
	if write && m.writeProtect {
		leave()
		return nil, WriteProtected
	}
	return leave, OK
}

// split parses a path that may carry the drive prefix into its components.
func (fs *FS) split(path string) ([]string, Result) {
	if i := strings.IndexByte(path, ':'); i >= 0 {
		if !equalFold(path[:i+1], fs.drive) {
			return nil, InvalidDrive
		}
		path = path[i+1:]
	}
	path = strings.ReplaceAll(path, "\\", "/")

	var parts []string
	for _, p := range strings.Split(path, "/") {
		switch {
		case p == "" || p == ".":
			continue
		case p == "..":
			return nil, InvalidName
		case strings.ContainsAny(p, "\"*:<>?|"):
			return nil, InvalidName
		}
		parts = append(parts, p)
	}
	return parts, OK
}

// lookup walks parts from the root. For a missing leaf it returns the
// parent and NoFile; for a missing intermediate directory it returns NoPath.
func (fs *FS) lookup(parts []string) (parent, n *node, r Result) {
	n = fs.medium.root
	for i, p := range parts {
		if !n.dir {
			return nil, nil, NoPath
		}
		parent = n
		n = n.child(p)
		if n == nil {
			if i == len(parts)-1 {
				return parent, nil, NoFile
			}
			return nil, nil, NoPath
		}
	}
	return parent, n, OK
}

// Stat returns the entry for path.
func (fs *FS) Stat(path string, fi *FileInfo) Result {
	leave, r := fs.enter(false)
	if r != OK {
		return r
	}
	defer leave()

	parts, r := fs.split(path)
	if r != OK {
		return r
	}
	if len(parts) == 0 {
		return InvalidName
	}
	_, n, r := fs.lookup(parts)
	if r != OK {
		return r
	}
	*fi = infoOf(n)
	return OK
}

// Mkdir creates a directory.
func (fs *FS) Mkdir(path string) Result {
	leave, r := fs.enter(true)
	if r != OK {
		return r
	}
	defer leave()

	parts, r := fs.split(path)
	if r != OK {
		return r
	}
	if len(parts) == 0 {
		return InvalidName
	}
	parent, n, r := fs.lookup(parts)
	if n != nil {
		return Exist
	}
	if r != NoFile {
		return r
	}
	m := fs.medium
	if m.usedClusters()+1 > m.totalClusters() {
		return Denied
	}
	d, t := m.stamp()
	parent.children = append(parent.children, &node{
		name:    parts[len(parts)-1],
		dir:     true,
		attr:    AmDir,
		fdate:   d,
		ftime:   t,
		crdate:  d,
		crtime:  t,
		cluster: m.allocCluster(),
		parent:  parent,
	})
	return OK
}

// Unlink removes a file or an empty directory.
func (fs *FS) Unlink(path string) Result {
	leave, r := fs.enter(true)
	if r != OK {
		return r
	}
	defer leave()

	parts, r := fs.split(path)
	if r != OK {
		return r
	}
	if len(parts) == 0 {
		return InvalidName
	}
	parent, n, r := fs.lookup(parts)
	if r != OK {
		return r
	}
	if n.attr&AmRdo != 0 || (n.dir && len(n.children) > 0) {
		return Denied
	}
	parent.unlink(n)
	return OK
}

// Rename moves an entry. The destination must not exist.
func (fs *FS) Rename(oldPath, newPath string) Result {
	leave, r := fs.enter(true)
	if r != OK {
		return r
	}
	defer leave()

	from, r := fs.split(oldPath)
	if r != OK {
		return r
	}
	to, r := fs.split(newPath)
	if r != OK {
		return r
	}
	if len(from) == 0 || len(to) == 0 {
		return InvalidName
	}
	oldParent, n, r := fs.lookup(from)
	if r != OK {
		return r
	}
	newParent, existing, r := fs.lookup(to)
	if existing != nil {
		return Exist
	}
	if r != NoFile {
		return r
	}
	for p := newParent; p != nil; p = p.parent {
		if p == n {
			return InvalidName
		}
	}
	oldParent.unlink(n)
	n.name = to[len(to)-1]
	n.parent = newParent
	newParent.children = append(newParent.children, n)
	return OK
}

// Chmod changes the attribute bits selected by mask.
func (fs *FS) Chmod(path string, attr, mask byte) Result {
	leave, r := fs.enter(true)
	if r != OK {
		return r
	}
	defer leave()

	parts, r := fs.split(path)
	if r != OK {
		return r
	}
	_, n, r := fs.lookup(parts)
	if r != OK {
		return r
	}
	mask &= AmRdo | AmHid | AmSys | AmArc
	n.attr = n.attr&^mask | attr&mask
	return OK
}

// Utime sets the modification timestamp of an entry.
func (fs *FS) Utime(path string, fdate, ftime uint16) Result {
	leave, r := fs.enter(true)
	if r != OK {
		return r
	}
	defer leave()

	parts, r := fs.split(path)
	if r != OK {
		return r
	}
	_, n, r := fs.lookup(parts)
	if r != OK {
		return r
	}
	n.fdate, n.ftime = fdate, ftime
	return OK
}

// GetFree returns the number of free clusters, the total number of
// clusters and the cluster size in bytes.
func (fs *FS) GetFree() (free, total, clusterSize int64, r Result) {
	leave, r := fs.enter(false)
	if r != OK {
		return 0, 0, 0, r
	}
	defer leave()

	m := fs.medium
	total = m.totalClusters()
	free = total - m.usedClusters()
	if free < 0 {
		free = 0
	}
	return free, total, m.clusterSize, OK
}

// GetLabel returns the volume label and serial number.
func (fs *FS) GetLabel() (string, uint32, Result) {
	leave, r := fs.enter(false)
	if r != OK {
		return "", 0, r
	}
	defer leave()
	return fs.medium.label, fs.medium.serial, OK
}

// SetLabel sets the volume label. A leading drive prefix is ignored.
func (fs *FS) SetLabel(label string) Result {
	leave, r := fs.enter(true)
	if r != OK {
		return r
	}
	defer leave()

	if i := strings.IndexByte(label, ':'); i >= 0 {
		label = label[i+1:]
	}
	if len(label) > maxLabel || strings.ContainsAny(label, "\"*+,.:;<=>?[]|/\\") {
		return InvalidName
	}
	fs.medium.label = strings.ToUpper(label)
	return OK
}
