package vfskit

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/vfskit/engine/fatfs"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newLFSBackend(t testing.TB) *LFSBackend {
	t.Helper()
	b, err := OpenLFSBackend(LFSConfig{BlockSize: 512, BlockCount: 256})
	require.NoError(t, err)
	return b
}

// testDrives is the usual three-drive table: a removable formatted card,
// a fixed log-structured flash and a fixed flat flash, the latter two
// formatted by Init.
func testDrives(t testing.TB) []DriveSpec {
	t.Helper()
	return []DriveSpec{
		{Prefix: "SD:", Backend: NewFATBackend(fatfs.NewMedium(1<<20, fatfs.Formatted()))},
		{Prefix: "SPI:", Backend: newLFSBackend(t), Fixed: true, AutoFormat: true, Label: "FLASH"},
		{Prefix: "DF:", Backend: NewFlatBackendFromConfig(FlatConfig{Sectors: 64, Label: "DATAFLASH"}), Fixed: true, AutoFormat: true},
	}
}

func newTestRegistry(t testing.TB, specs []DriveSpec, opts ...Option) *Registry {
	t.Helper()
	r, err := NewRegistry(specs, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, r.Init())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// allDrives lists the prefixes of testDrives for per-backend subtests.
var allDrives = []string{"SD:", "SPI:", "DF:"}

func writeFile(t testing.TB, r *Registry, path, content string) {
	t.Helper()
	f, err := r.Open(path, OpenWrite|OpenCreate|OpenTruncate)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func readFile(t testing.TB, r *Registry, path string) string {
	t.Helper()
	f, err := r.Open(path, OpenRead)
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(b)
}
