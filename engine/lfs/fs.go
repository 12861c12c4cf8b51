package lfs

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

const version = 0x00020000

type superblock struct {
	Version    uint32 `json:"version"`
	BlockSize  int64  `json:"block_size"`
	BlockCount int64  `json:"block_count"`
	NextID     uint32 `json:"next_id"`
}

type entry struct {
	ID   uint32 `json:"id"`
	Type uint8  `json:"type"`
	Size int64  `json:"size"`
}

// Info describes an entry.
type Info struct {
	Type uint8
	Size int64
	Name string
	ID   uint32
}

// FS is a mounted littlefs volume.
type FS struct {
	mu  sync.Mutex
	dev *Device
	sb  *superblock
}

// Format writes an empty filesystem to the device.
func Format(dev *Device) error {
	if dev == nil {
		return ErrInval
	}
	if err := dev.Erase(); err != nil {
		return ErrIO
	}
	sb := superblock{
		Version:    version,
		BlockSize:  dev.cfg.BlockSize,
		BlockCount: dev.cfg.BlockCount,
		NextID:     1,
	}
	return wrap(dev.db.Update(func(txn *badger.Txn) error {
		if err := putJSON(txn, keySuperblock, &sb); err != nil {
			return err
		}
		return putJSON(txn, prefixEntry, &entry{ID: 0, Type: TypeDir})
	}))
}

// Mount attaches the filesystem on dev. An unformatted device fails with
// ErrCorrupt.
func (fs *FS) Mount(dev *Device) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if dev == nil {
		return ErrInval
	}
	var sb superblock
	err := dev.db.View(func(txn *badger.Txn) error {
		raw, err := get(txn, keySuperblock)
		if err != nil {
			return err
		}
		if json.Unmarshal(raw, &sb) != nil || sb.Version != version {
			return ErrCorrupt
		}
		return nil
	})
	if errors.Is(err, ErrNoEnt) {
		return ErrCorrupt
	}
	if err != nil {
		return wrap(err)
	}
	fs.dev, fs.sb = dev, &sb
	return nil
}

// Unmount detaches the filesystem. The device stays open.
func (fs *FS) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dev, fs.sb = nil, nil
	return nil
}

// Locked reports whether the volume mutex is currently held.
func (fs *FS) Locked() bool {
	if fs.mu.TryLock() {
		fs.mu.Unlock()
		return false
	}
	return true
}

func (fs *FS) enter() error {
	fs.mu.Lock()
	if fs.dev == nil {
		fs.mu.Unlock()
		return ErrInval
	}
	return nil
}

// clean normalizes a volume-relative path. The root is "".
func clean(path string) (string, error) {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(parts) == 0 {
				return "", ErrInval
			}
			parts = parts[:len(parts)-1]
			continue
		}
		if len(p) > NameMax {
			return "", ErrNameTooLong
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "/"), nil
}

func parentOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

func baseOf(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}

func putJSON(txn *badger.Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return ErrIO
	}
	if err := txn.Set([]byte(key), raw); err != nil {
		return wrap(err)
	}
	return nil
}

func getEntry(txn *badger.Txn, path string) (*entry, error) {
	raw, err := get(txn, prefixEntry+path)
	if err != nil {
		return nil, err
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, ErrCorrupt
	}
	return &e, nil
}

// wrap maps storage failures onto ErrIO and lets engine codes through.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var code Error
	if errors.As(err, &code) {
		return code
	}
	if errors.Is(err, badger.ErrTxnTooBig) {
		return ErrNoSpc
	}
	return ErrIO
}

func dataKey(id uint32) string {
	return prefixData + strconv.FormatUint(uint64(id), 10)
}

func attrKey(path string, typ uint8) string {
	return prefixAttr + path + "\x00" + string([]byte{typ})
}

// checkParent verifies the parent of path exists and is a directory.
func checkParent(txn *badger.Txn, path string) error {
	parent, err := getEntry(txn, parentOf(path))
	if err != nil {
		return err
	}
	if parent.Type != TypeDir {
		return ErrNotDir
	}
	return nil
}

func (fs *FS) nextID(txn *badger.Txn) (uint32, error) {
	id := fs.sb.NextID
	fs.sb.NextID++
	if err := putJSON(txn, keySuperblock, fs.sb); err != nil {
		fs.sb.NextID--
		return 0, err
	}
	return id, nil
}

// usedBlocks counts allocated blocks: two for the superblock pair, one per
// directory and the data blocks of every file.
func (fs *FS) usedBlocks(txn *badger.Txn) (int64, error) {
	used := int64(2)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixEntry)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var e entry
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
		if err != nil {
			return 0, ErrCorrupt
		}
		if e.Type == TypeDir {
			used++
			continue
		}
		used += fs.blocks(e.Size)
	}
	return used, nil
}

func (fs *FS) blocks(size int64) int64 {
	return (size + fs.sb.BlockSize - 1) / fs.sb.BlockSize
}

// Size returns the number of blocks in use.
func (fs *FS) Size() (int64, error) {
	if err := fs.enter(); err != nil {
		return 0, err
	}
	defer fs.mu.Unlock()

	var used int64
	err := fs.dev.db.View(func(txn *badger.Txn) error {
		var err error
		used, err = fs.usedBlocks(txn)
		return err
	})
	return used, wrap(err)
}

// Geometry returns block size and block count.
func (fs *FS) Geometry() (blockSize, blockCount int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.sb == nil {
		return 0, 0
	}
	return fs.sb.BlockSize, fs.sb.BlockCount
}

// Stat returns information about an entry.
func (fs *FS) Stat(path string) (Info, error) {
	if err := fs.enter(); err != nil {
		return Info{}, err
	}
	defer fs.mu.Unlock()

	path, err := clean(path)
	if err != nil {
		return Info{}, err
	}
	var info Info
	err = fs.dev.db.View(func(txn *badger.Txn) error {
		e, err := getEntry(txn, path)
		if err != nil {
			return err
		}
		info = Info{Type: e.Type, Size: e.Size, Name: baseOf(path), ID: e.ID}
		if path == "" {
			info.Name = "/"
		}
		return nil
	})
	return info, wrap(err)
}

// Mkdir creates a directory.
func (fs *FS) Mkdir(path string) error {
	if err := fs.enter(); err != nil {
		return err
	}
	defer fs.mu.Unlock()

	path, err := clean(path)
	if err != nil {
		return err
	}
	if path == "" {
		return ErrExist
	}
	return wrap(fs.dev.db.Update(func(txn *badger.Txn) error {
		if _, err := getEntry(txn, path); err == nil {
			return ErrExist
		}
		if err := checkParent(txn, path); err != nil {
			return err
		}
		used, err := fs.usedBlocks(txn)
		if err != nil {
			return err
		}
		if used+1 > fs.sb.BlockCount {
			return ErrNoSpc
		}
		id, err := fs.nextID(txn)
		if err != nil {
			return err
		}
		return putJSON(txn, prefixEntry+path, &entry{ID: id, Type: TypeDir})
	}))
}

func deleteAttrs(txn *badger.Txn, path string) error {
	for _, k := range keys(txn, prefixAttr+path+"\x00") {
		if err := txn.Delete([]byte(k)); err != nil {
			return err
		}
	}
	return nil
}

// Remove removes a file or an empty directory.
func (fs *FS) Remove(path string) error {
	if err := fs.enter(); err != nil {
		return err
	}
	defer fs.mu.Unlock()

	path, err := clean(path)
	if err != nil {
		return err
	}
	if path == "" {
		return ErrInval
	}
	return wrap(fs.dev.db.Update(func(txn *badger.Txn) error {
		e, err := getEntry(txn, path)
		if err != nil {
			return err
		}
		if e.Type == TypeDir && len(keys(txn, prefixEntry+path+"/")) > 0 {
			return ErrNotEmpty
		}
		if e.Type == TypeReg {
			if err := txn.Delete([]byte(dataKey(e.ID))); err != nil {
				return err
			}
		}
		if err := deleteAttrs(txn, path); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixEntry + path))
	}))
}

// Rename moves an entry. An existing destination of the same type is
// replaced; a non-empty destination directory is refused.
func (fs *FS) Rename(oldPath, newPath string) error {
	if err := fs.enter(); err != nil {
		return err
	}
	defer fs.mu.Unlock()

	oldPath, err := clean(oldPath)
	if err != nil {
		return err
	}
	newPath, err = clean(newPath)
	if err != nil {
		return err
	}
	if oldPath == "" || newPath == "" || strings.HasPrefix(newPath+"/", oldPath+"/") {
		if oldPath == newPath {
			return nil
		}
		return ErrInval
	}

	return wrap(fs.dev.db.Update(func(txn *badger.Txn) error {
		src, err := getEntry(txn, oldPath)
		if err != nil {
			return err
		}
		if err := checkParent(txn, newPath); err != nil {
			return err
		}
		if dst, err := getEntry(txn, newPath); err == nil {
			switch {
			case dst.Type != src.Type && dst.Type == TypeDir:
				return ErrIsDir
			case dst.Type != src.Type:
				return ErrNotDir
			case dst.Type == TypeDir && len(keys(txn, prefixEntry+newPath+"/")) > 0:
				return ErrNotEmpty
			case dst.Type == TypeReg:
				if err := txn.Delete([]byte(dataKey(dst.ID))); err != nil {
					return err
				}
			}
			if err := deleteAttrs(txn, newPath); err != nil {
				return err
			}
		}

		// Move the entry, its attributes and every descendant.
		moves := append(keys(txn, prefixEntry+oldPath+"/"), prefixEntry+oldPath)
		moves = append(moves, keys(txn, prefixAttr+oldPath+"\x00")...)
		moves = append(moves, keys(txn, prefixAttr+oldPath+"/")...)
		for _, k := range moves {
			var ns, rest string
			switch {
			case strings.HasPrefix(k, prefixEntry):
				ns, rest = prefixEntry, k[len(prefixEntry)+len(oldPath):]
			default:
				ns, rest = prefixAttr, k[len(prefixAttr)+len(oldPath):]
			}
			val, err := get(txn, k)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(ns+newPath+rest), val); err != nil {
				return err
			}
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))
}

// GetAttr returns a custom attribute of an entry.
func (fs *FS) GetAttr(path string, typ uint8) ([]byte, error) {
	if err := fs.enter(); err != nil {
		return nil, err
	}
	defer fs.mu.Unlock()

	path, err := clean(path)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = fs.dev.db.View(func(txn *badger.Txn) error {
		if _, err := getEntry(txn, path); err != nil {
			return err
		}
		out, err = get(txn, attrKey(path, typ))
		if errors.Is(err, ErrNoEnt) {
			return ErrNoAttr
		}
		return err
	})
	return out, wrap(err)
}

// SetAttr stores a custom attribute on an entry.
func (fs *FS) SetAttr(path string, typ uint8, data []byte) error {
	if err := fs.enter(); err != nil {
		return err
	}
	defer fs.mu.Unlock()

	path, err := clean(path)
	if err != nil {
		return err
	}
	return wrap(fs.dev.db.Update(func(txn *badger.Txn) error {
		if _, err := getEntry(txn, path); err != nil {
			return err
		}
		return txn.Set([]byte(attrKey(path, typ)), append([]byte(nil), data...))
	}))
}

// Dir is an open directory. Its entries are captured when it is opened and
// begin with "." and "..".
type Dir struct {
	entries []Info
	idx     int
}

// OpenDir opens a directory.
func (fs *FS) OpenDir(path string) (*Dir, error) {
	if err := fs.enter(); err != nil {
		return nil, err
	}
	defer fs.mu.Unlock()

	path, err := clean(path)
	if err != nil {
		return nil, err
	}
	d := &Dir{entries: []Info{{Type: TypeDir, Name: "."}, {Type: TypeDir, Name: ".."}}}
	err = fs.dev.db.View(func(txn *badger.Txn) error {
		e, err := getEntry(txn, path)
		if err != nil {
			return err
		}
		if e.Type != TypeDir {
			return ErrNotDir
		}
		prefix := prefixEntry
		if path != "" {
			prefix += path + "/"
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			name := string(it.Item().Key()[len(prefix):])
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			var c entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return ErrCorrupt
			}
			d.entries = append(d.entries, Info{Type: c.Type, Size: c.Size, Name: name, ID: c.ID})
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}
	return d, nil
}

// Read fills info with the next entry. It returns false at the end.
func (d *Dir) Read(info *Info) (bool, error) {
	if d == nil {
		return false, ErrBadF
	}
	if d.idx >= len(d.entries) {
		return false, nil
	}
	*info = d.entries[d.idx]
	d.idx++
	return true, nil
}

// Close releases the directory.
func (d *Dir) Close() error {
	if d == nil {
		return ErrBadF
	}
	d.entries = nil
	return nil
}
