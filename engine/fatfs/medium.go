// Package fatfs is a small in-memory engine with the entry points and
// result codes of a FatFs-style block filesystem. It stands in for a card
// or on-board flash volume: a Medium holds the media state and an FS is the
// per-volume work area that mounts it.
package fatfs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultClusterSize is the allocation unit used when none is configured.
const DefaultClusterSize = 512

type node struct {
	name     string
	dir      bool
	attr     byte
	data     []byte
	fdate    uint16
	ftime    uint16
	crdate   uint16
	crtime   uint16
	cluster  uint32
	parent   *node
	children []*node
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if equalFold(c.name, name) {
			return c
		}
	}
	return nil
}

func (n *node) unlink(c *node) {
	for i, x := range n.children {
		if x == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// Medium is the simulated physical media behind a volume.
type Medium struct {
	mu           sync.Mutex
	present      bool
	writeProtect bool
	formatted    bool
	capacity     int64
	clusterSize  int64
	root         *node
	label        string
	serial       uint32
	nextCluster  uint32
	now          func() time.Time
}

// MediumOption configures a Medium.
type MediumOption func(*Medium)

// WithClusterSize sets the allocation unit in bytes.
func WithClusterSize(n int64) MediumOption {
	return func(m *Medium) {
		if n > 0 {
			m.clusterSize = n
		}
	}
}

// WithClock sets the time source used for directory entry timestamps.
func WithClock(now func() time.Time) MediumOption {
	return func(m *Medium) {
		if now != nil {
			m.now = now
		}
	}
}

// Formatted creates the medium already carrying an empty volume.
func Formatted() MediumOption {
	return func(m *Medium) {
		m.format()
	}
}

// NewMedium returns an inserted, unformatted medium of the given capacity.
func NewMedium(capacity int64, opts ...MediumOption) *Medium {
	m := &Medium{
		present:     true,
		capacity:    capacity,
		clusterSize: DefaultClusterSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Insert marks the medium as present.
func (m *Medium) Insert() {
	m.mu.Lock()
	m.present = true
	m.mu.Unlock()
}

// Eject marks the medium as absent. Mounted volumes report NotReady.
func (m *Medium) Eject() {
	m.mu.Lock()
	m.present = false
	m.mu.Unlock()
}

// Present reports whether the medium is inserted.
func (m *Medium) Present() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present
}

// SetWriteProtect toggles the write-protect switch.
func (m *Medium) SetWriteProtect(on bool) {
	m.mu.Lock()
	m.writeProtect = on
	m.mu.Unlock()
}

// Serial returns the volume serial number written by the last format.
func (m *Medium) Serial() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serial
}

func (m *Medium) format() {
	m.root = &node{dir: true, attr: AmDir}
	m.label = ""
	m.serial = uuid.New().ID()
	m.nextCluster = 2
	m.formatted = true
}

func (m *Medium) clusters(size int64) int64 {
	if size <= 0 {
		return 0
	}
	return (size + m.clusterSize - 1) / m.clusterSize
}

func (m *Medium) usedClusters() int64 {
	var used int64
	var walk func(n *node)
	walk = func(n *node) {
		for _, c := range n.children {
			if c.dir {
				used++
				walk(c)
				continue
			}
			used += m.clusters(int64(len(c.data)))
		}
	}
	if m.root != nil {
		walk(m.root)
	}
	return used
}

func (m *Medium) totalClusters() int64 {
	return m.capacity / m.clusterSize
}

func (m *Medium) allocCluster() uint32 {
	c := m.nextCluster
	m.nextCluster++
	return c
}

func (m *Medium) stamp() (uint16, uint16) {
	return packTime(m.now())
}
