package hotplug

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	path  string
	mount bool
}

type fakeMounter struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeMounter) Mount(path string, mount bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{path, mount})
	return nil
}

func (f *fakeMounter) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func TestDetectorFollowsMarkerFiles(t *testing.T) {
	dir := t.TempDir()
	// already inserted before the detector starts
	require.NoError(t, os.WriteFile(filepath.Join(dir, "usb.present"), nil, 0o600))

	m := &fakeMounter{}
	var presence sync.Map
	d, err := New(m, Config{
		Dir:   dir,
		Slots: map[string]string{"sd.present": "SD:", "usb.present": "USB:"},
		OnPresence: func(prefix string, present bool) {
			presence.Store(prefix, present)
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return len(m.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, call{"USB:", true}, m.snapshot()[0])

	marker := filepath.Join(dir, "sd.present")
	require.NoError(t, os.WriteFile(marker, nil, 0o600))
	require.Eventually(t, func() bool {
		for _, c := range m.snapshot() {
			if c == (call{"SD:", true}) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(marker))
	require.Eventually(t, func() bool {
		for _, c := range m.snapshot() {
			if c == (call{"SD:", false}) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	v, ok := presence.Load("SD:")
	require.True(t, ok)
	assert.Equal(t, false, v)

	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), nil, 0o600))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	require.NoError(t, d.Close())

	for _, c := range m.snapshot() {
		assert.NotEqual(t, "other", c.path)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(nil, Config{Dir: t.TempDir(), Slots: map[string]string{"a": "A:"}})
	assert.Error(t, err)

	_, err = New(&fakeMounter{}, Config{Dir: t.TempDir()})
	assert.Error(t, err)

	_, err = New(&fakeMounter{}, Config{Dir: filepath.Join(t.TempDir(), "missing"), Slots: map[string]string{"a": "A:"}})
	assert.Error(t, err)
}
