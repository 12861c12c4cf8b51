package fatfs

// File is an open file object.
type File struct {
	fs      *FS
	n       *node
	pos     int64
	mode    byte
	written bool
}

// Open opens or creates the file at path according to mode.
func (fs *FS) Open(f *File, path string, mode byte) Result {
	if f == nil {
		return InvalidObject
	}
	*f = File{}

	create := mode&(FaCreateNew|FaCreateAlways|FaOpenAlways) != 0
	leave, r := fs.enter(mode&FaWrite != 0 || create)
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

	m := fs.medium
	parent, n, r := fs.lookup(parts)
	switch {
	case n != nil && mode&FaCreateNew != 0:
		return Exist
	case n != nil && n.dir:
		if create {
			return Denied
		}
		return NoFile
	case n == nil && r == NoFile && create:
		if m.usedClusters() >= m.totalClusters() {
			return Denied
		}
		d, t := m.stamp()
		n = &node{
			name:    parts[len(parts)-1],
			attr:    AmArc,
			fdate:   d,
			ftime:   t,
			crdate:  d,
			crtime:  t,
			cluster: m.allocCluster(),
			parent:  parent,
		}
		parent.children = append(parent.children, n)
	case n == nil:
		return r
	}

	if mode&FaWrite != 0 && n.attr&AmRdo != 0 {
		return Denied
	}
	if mode&FaCreateAlways != 0 && len(n.data) > 0 {
		n.data = n.data[:0]
		f.written = true
	}

	f.fs, f.n, f.mode = fs, n, mode
	if mode&FaOpenAppend == FaOpenAppend {
		f.pos = int64(len(n.data))
	}
	return OK
}

func (f *File) enter(write bool) (func(), Result) {
	if f.fs == nil || f.n == nil {
		return nil, InvalidObject
	}
	return f.fs.enter(write)
}

// Read reads up to len(p) bytes from the current position.
func (f *File) Read(p []byte) (int, Result) {
	leave, r := f.enter(false)
	if r != OK {
		return 0, r
	}
	defer leave()

	if f.mode&FaRead == 0 {
		return 0, Denied
	}
	if f.pos >= int64(len(f.n.data)) {
		return 0, OK
	}
	n := copy(p, f.n.data[f.pos:])
	f.pos += int64(n)
	return n, OK
}

// Write writes p at the current position. When the volume fills up the
// write is cut short and OK is returned with the stored count.
func (f *File) Write(p []byte) (int, Result) {
	leave, r := f.enter(true)
	if r != OK {
		return 0, r
	}
	defer leave()

	if f.mode&FaWrite == 0 {
		return 0, Denied
	}
	m := f.fs.medium
	size := int64(len(f.n.data))
	limit := (m.clusters(size) + m.totalClusters() - m.usedClusters()) * m.clusterSize

	end := f.pos + int64(len(p))
	if end > limit {
		end = limit
	}
	if end <= f.pos {
		return 0, OK
	}
	if end > size {
		f.n.data = append(f.n.data, make([]byte, end-size)...)
	}
	n := copy(f.n.data[f.pos:end], p)
	f.pos += int64(n)
	f.written = true
	return n, OK
}

// Lseek moves the file pointer. In write mode seeking past the end
// expands the file; in read mode the pointer is clipped to the file size.
func (f *File) Lseek(ofs int64) Result {
	leave, r := f.enter(false)
	if r != OK {
		return r
	}
	defer leave()

	if ofs < 0 {
		return InvalidParameter
	}
	size := int64(len(f.n.data))
	if ofs > size {
		if f.mode&FaWrite == 0 || f.fs.medium.writeProtect {
			ofs = size
		} else {
			m := f.fs.medium
			limit := (m.clusters(size) + m.totalClusters() - m.usedClusters()) * m.clusterSize
			if ofs > limit {
				ofs = limit
			}
			f.n.data = append(f.n.data, make([]byte, ofs-size)...)
			f.written = true
		}
	}
	f.pos = ofs
	return OK
}

// Tell returns the file pointer.
func (f *File) Tell() int64 {
	return f.pos
}

// Size returns the file size.
func (f *File) Size() int64 {
	if f.n == nil {
		return 0
	}
	return int64(len(f.n.data))
}

// Eof reports whether the file pointer is at the end of the file.
func (f *File) Eof() bool {
	return f.pos >= f.Size()
}

// Truncate cuts the file at the current file pointer.
func (f *File) Truncate() Result {
	leave, r := f.enter(true)
	if r != OK {
		return r
	}
	defer leave()

	if f.mode&FaWrite == 0 {
		return Denied
	}
	if f.pos < int64(len(f.n.data)) {
		f.n.data = f.n.data[:f.pos]
		f.written = true
	}
	return OK
}

// Sync flushes cached state and stamps the modification time of a
// written file.
func (f *File) Sync() Result {
	leave, r := f.enter(false)
	if r != OK {
		return r
	}
	defer leave()

	if f.written {
		f.n.fdate, f.n.ftime = f.fs.medium.stamp()
		f.n.attr |= AmArc
		f.written = false
	}
	return OK
}

// Close syncs and invalidates the file object.
func (f *File) Close() Result {
	if r := f.Sync(); r != OK {
		return r
	}
	*f = File{}
	return OK
}

// Dir is an open directory object. Entries are captured when the
// directory is opened.
type Dir struct {
	entries []FileInfo
	idx     int
	valid   bool
}

// OpenDir opens a directory. An empty path or a bare drive prefix opens
// the root directory.
func (fs *FS) OpenDir(d *Dir, path string) Result {
	if d == nil {
		return InvalidObject
	}
	*d = Dir{}

	leave, r := fs.enter(false)
	if r != OK {
		return r
	}
	defer leave()

	parts, r := fs.split(path)
	if r != OK {
		return r
	}
	_, n, r := fs.lookup(parts)
	if r == NoFile {
		return NoPath
	}
	if r != OK {
		return r
	}
	if !n.dir {
		return NoPath
	}
	d.entries = make([]FileInfo, 0, len(n.children))
	for _, c := range n.children {
		d.entries = append(d.entries, infoOf(c))
	}
	d.valid = true
	return OK
}

// Read fills fi with the next entry. At the end of the directory fi.Name
// is empty.
func (d *Dir) Read(fi *FileInfo) Result {
	if !d.valid {
		return InvalidObject
	}
	if d.idx >= len(d.entries) {
		*fi = FileInfo{}
		return OK
	}
	*fi = d.entries[d.idx]
	d.idx++
	return OK
}

// Close invalidates the directory object.
func (d *Dir) Close() Result {
	if !d.valid {
		return InvalidObject
	}
	*d = Dir{}
	return OK
}
