package lfs

import (
	badger "github.com/dgraph-io/badger/v4"
)

// Attr is a custom attribute attached to a file through FileConfig. On
// open Buffer is filled from storage when the attribute exists; on sync
// and close Buffer is written back for writable files.
type Attr struct {
	Type   uint8
	Buffer []byte
	Found  bool
}

// FileConfig carries per-open options.
type FileConfig struct {
	Attrs []*Attr
}

// File is an open file. Contents are cached until Sync or Close.
type File struct {
	fs    *FS
	path  string
	id    uint32
	flags int
	cfg   *FileConfig
	data  []byte
	pos   int64
	dirty bool
}

// OpenCfg opens a file with custom attributes.
func (fs *FS) OpenCfg(path string, flags int, cfg *FileConfig) (*File, error) {
	if err := fs.enter(); err != nil {
		return nil, err
	}
	defer fs.mu.Unlock()

	path, err := clean(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, ErrIsDir
	}
	if flags&ORdWr == 0 {
		return nil, ErrInval
	}

	f := &File{fs: fs, path: path, flags: flags, cfg: cfg}
	err = fs.dev.db.Update(func(txn *badger.Txn) error {
		e, err := getEntry(txn, path)
		switch {
		case err == nil && flags&OCreat != 0 && flags&OExcl != 0:
			return ErrExist
		case err == nil && e.Type == TypeDir:
			return ErrIsDir
		case err == ErrNoEnt && flags&OCreat != 0:
			if err := checkParent(txn, path); err != nil {
				return err
			}
			id, err := fs.nextID(txn)
			if err != nil {
				return err
			}
			e = &entry{ID: id, Type: TypeReg}
			if err := putJSON(txn, prefixEntry+path, e); err != nil {
				return err
			}
		case err != nil:
			return err
		}
		f.id = e.ID

		if flags&OTrunc != 0 {
			f.dirty = e.Size > 0
		} else {
			raw, err := get(txn, dataKey(e.ID))
			if err != nil && err != ErrNoEnt {
				return err
			}
			f.data = raw
		}

		if cfg != nil {
			for _, a := range cfg.Attrs {
				raw, err := get(txn, attrKey(path, a.Type))
				if err == ErrNoEnt {
					continue
				}
				if err != nil {
					return err
				}
				a.Found = true
				a.Buffer = raw
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}
	if flags&OAppend != 0 {
		f.pos = int64(len(f.data))
	}
	return f, nil
}

// Open opens a file without custom attributes.
func (fs *FS) Open(path string, flags int) (*File, error) {
	return fs.OpenCfg(path, flags, nil)
}

func (f *File) valid() error {
	if f == nil || f.fs == nil {
		return ErrBadF
	}
	return nil
}

// Read reads from the current position. It returns 0 at end of file.
func (f *File) Read(p []byte) (int, error) {
	if err := f.valid(); err != nil {
		return 0, err
	}
	if f.flags&ORdOnly == 0 {
		return 0, ErrBadF
	}
	if f.pos >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

// Write writes at the current position, or at the end for append mode.
// Gaps left by an earlier seek are zero filled.
func (f *File) Write(p []byte) (int, error) {
	if err := f.valid(); err != nil {
		return 0, err
	}
	if f.flags&OWrOnly == 0 {
		return 0, ErrBadF
	}
	if f.flags&OAppend != 0 {
		f.pos = int64(len(f.data))
	}
	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		if err := f.reserve(end); err != nil {
			return 0, err
		}
		f.data = append(f.data, make([]byte, end-int64(len(f.data)))...)
	}
	copy(f.data[f.pos:end], p)
	f.pos = end
	f.dirty = true
	return len(p), nil
}

// reserve fails with ErrNoSpc when growing the file to size would exceed
// the block count.
func (f *File) reserve(size int64) error {
	fs := f.fs
	if err := fs.enter(); err != nil {
		return err
	}
	defer fs.mu.Unlock()

	have := fs.blocks(int64(len(f.data)))
	need := fs.blocks(size)
	if need <= have {
		return nil
	}
	return wrap(fs.dev.db.View(func(txn *badger.Txn) error {
		used, err := fs.usedBlocks(txn)
		if err != nil {
			return err
		}
		stored, err := getEntry(txn, f.path)
		if err == nil {
			used -= fs.blocks(stored.Size)
		}
		if used+need > fs.sb.BlockCount {
			return ErrNoSpc
		}
		return nil
	}))
}

// Seek moves the file position and returns the new offset.
func (f *File) Seek(off int64, whence int) (int64, error) {
	if err := f.valid(); err != nil {
		return 0, err
	}
	var pos int64
	switch whence {
	case SeekSet:
		pos = off
	case SeekCur:
		pos = f.pos + off
	case SeekEnd:
		pos = int64(len(f.data)) + off
	default:
		return 0, ErrInval
	}
	if pos < 0 {
		return 0, ErrInval
	}
	f.pos = pos
	return pos, nil
}

// Tell returns the file position.
func (f *File) Tell() int64 {
	return f.pos
}

// Size returns the file size including unsynced writes.
func (f *File) Size() int64 {
	return int64(len(f.data))
}

// Rewind seeks to the beginning.
func (f *File) Rewind() error {
	_, err := f.Seek(0, SeekSet)
	return err
}

// Truncate sets the file size.
func (f *File) Truncate(size int64) error {
	if err := f.valid(); err != nil {
		return err
	}
	if f.flags&OWrOnly == 0 {
		return ErrBadF
	}
	if size < 0 {
		return ErrInval
	}
	if size > int64(len(f.data)) {
		if err := f.reserve(size); err != nil {
			return err
		}
		f.data = append(f.data, make([]byte, size-int64(len(f.data)))...)
	} else {
		f.data = f.data[:size]
	}
	f.dirty = true
	return nil
}

// Sync commits cached contents and attributes.
func (f *File) Sync() error {
	if err := f.valid(); err != nil {
		return err
	}
	writable := f.flags&OWrOnly != 0
	if !f.dirty && !writable {
		return nil
	}

	fs := f.fs
	if err := fs.enter(); err != nil {
		return err
	}
	defer fs.mu.Unlock()

	err := fs.dev.db.Update(func(txn *badger.Txn) error {
		if _, err := getEntry(txn, f.path); err != nil {
			return err
		}
		if f.dirty {
			if err := txn.Set([]byte(dataKey(f.id)), append([]byte(nil), f.data...)); err != nil {
				return err
			}
			if err := putJSON(txn, prefixEntry+f.path, &entry{ID: f.id, Type: TypeReg, Size: int64(len(f.data))}); err != nil {
				return err
			}
		}
		if writable && f.cfg != nil {
			for _, a := range f.cfg.Attrs {
				if a.Buffer == nil {
					continue
				}
				if err := txn.Set([]byte(attrKey(f.path, a.Type)), append([]byte(nil), a.Buffer...)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return wrap(err)
	}
	f.dirty = false
	return nil
}

// Close syncs and releases the file.
func (f *File) Close() error {
	if err := f.Sync(); err != nil {
		return err
	}
	f.fs = nil
	f.data = nil
	return nil
}
