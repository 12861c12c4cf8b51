package fatfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mounted(t *testing.T, capacity int64) (*FS, *Medium) {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 5, 6, 7, 8, 10, 0, time.UTC) }
	m := NewMedium(capacity, Formatted(), WithClock(clock))
	fs := &FS{}
	require.Equal(t, OK, fs.Mount(m, "SD:"))
	return fs, m
}

func TestMountStates(t *testing.T) {
	fs := &FS{}
	m := NewMedium(64 * 1024)
	assert.Equal(t, NoFilesystem, fs.Mount(m, "SD:"))

	require.Equal(t, OK, Mkfs(m))
	assert.Equal(t, OK, fs.Mount(m, "SD:"))

	m.Eject()
	var fi FileInfo
	assert.Equal(t, NotReady, fs.Stat("SD:/x", &fi))
	assert.Equal(t, NotReady, fs.Mount(m, "SD:"))
	assert.Equal(t, NotReady, Mkfs(m))

	m.Insert()
	require.Equal(t, OK, fs.Mount(m, "SD:"))
	require.Equal(t, OK, fs.Unmount())
	assert.Equal(t, NotEnabled, fs.Stat("SD:/x", &fi))
}

func TestOpenModes(t *testing.T) {
	fs, _ := mounted(t, 64*1024)
	var f File

	assert.Equal(t, NoFile, fs.Open(&f, "SD:/a.txt", FaRead))
	assert.Equal(t, NoPath, fs.Open(&f, "SD:/missing/a.txt", FaWrite|FaCreateAlways))
	assert.Equal(t, InvalidDrive, fs.Open(&f, "USB:/a.txt", FaRead))
	assert.Equal(t, InvalidName, fs.Open(&f, "SD:/a?.txt", FaRead))

	require.Equal(t, OK, fs.Open(&f, "SD:/a.txt", FaWrite|FaCreateNew))
	n, r := f.Write([]byte("hello"))
	require.Equal(t, OK, r)
	require.Equal(t, 5, n)
	require.Equal(t, OK, f.Close())

	assert.Equal(t, Exist, fs.Open(&f, "sd:/A.TXT", FaWrite|FaCreateNew))

	require.Equal(t, OK, fs.Open(&f, "SD:/a.txt", FaWrite|FaOpenAppend))
	assert.Equal(t, int64(5), f.Tell())
	_, r = f.Write([]byte("!"))
	require.Equal(t, OK, r)
	require.Equal(t, OK, f.Close())

	require.Equal(t, OK, fs.Open(&f, "SD:/a.txt", FaRead))
	buf := make([]byte, 16)
	n, r = f.Read(buf)
	require.Equal(t, OK, r)
	assert.Equal(t, "hello!", string(buf[:n]))
	assert.True(t, f.Eof())
	require.Equal(t, OK, f.Close())

	require.Equal(t, OK, fs.Open(&f, "SD:/a.txt", FaWrite|FaCreateAlways))
	assert.Equal(t, int64(0), f.Size())
	require.Equal(t, OK, f.Close())
}

func TestLseekClipsInReadMode(t *testing.T) {
	fs, _ := mounted(t, 64*1024)
	var f File
	require.Equal(t, OK, fs.Open(&f, "SD:/s", FaWrite|FaCreateAlways))
	_, _ = f.Write([]byte("abc"))
	require.Equal(t, OK, f.Lseek(10))
	assert.Equal(t, int64(10), f.Size())
	require.Equal(t, OK, f.Close())

	require.Equal(t, OK, fs.Open(&f, "SD:/s", FaRead))
	require.Equal(t, OK, f.Lseek(50))
	assert.Equal(t, int64(10), f.Tell())
	require.Equal(t, OK, f.Close())
}

func TestWriteStopsWhenFull(t *testing.T) {
	m := NewMedium(4*512, Formatted())
	fs := &FS{}
	require.Equal(t, OK, fs.Mount(m, "SD:"))

	var f File
	require.Equal(t, OK, fs.Open(&f, "SD:/big", FaWrite|FaCreateAlways))
	n, r := f.Write(make([]byte, 5*512))
	require.Equal(t, OK, r)
	assert.Equal(t, 4*512, n)
	require.Equal(t, OK, f.Close())

	free, total, cs, r := fs.GetFree()
	require.Equal(t, OK, r)
	assert.Equal(t, int64(0), free)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, int64(512), cs)
}

func TestDirectoryOperations(t *testing.T) {
	fs, _ := mounted(t, 64*1024)

	require.Equal(t, OK, fs.Mkdir("SD:/docs"))
	assert.Equal(t, Exist, fs.Mkdir("SD:/DOCS"))

	var f File
	require.Equal(t, OK, fs.Open(&f, "SD:/docs/one.txt", FaWrite|FaCreateNew))
	require.Equal(t, OK, f.Close())

	assert.Equal(t, Denied, fs.Unlink("SD:/docs"))
	require.Equal(t, OK, fs.Rename("SD:/docs/one.txt", "SD:/two.txt"))
	assert.Equal(t, InvalidName, fs.Rename("SD:/docs", "SD:/docs/inner"))

	var d Dir
	require.Equal(t, OK, fs.OpenDir(&d, "SD:/"))
	var names []string
	for {
		var fi FileInfo
		require.Equal(t, OK, d.Read(&fi))
		if fi.Name == "" {
			break
		}
		names = append(names, fi.Name)
	}
	require.Equal(t, OK, d.Close())
	assert.ElementsMatch(t, []string{"docs", "two.txt"}, names)

	require.Equal(t, OK, fs.Unlink("SD:/docs"))
	assert.Equal(t, NoPath, fs.OpenDir(&d, "SD:/docs"))
}

func TestChmodUtimeAndLabel(t *testing.T) {
	fs, m := mounted(t, 64*1024)
	var f File
	require.Equal(t, OK, fs.Open(&f, "SD:/cfg", FaWrite|FaCreateNew))
	require.Equal(t, OK, f.Close())

	require.Equal(t, OK, fs.Chmod("SD:/cfg", AmHid|AmRdo, AmHid|AmRdo))
	require.Equal(t, OK, fs.Utime("SD:/cfg", 0x5821, 0x1234))

	var fi FileInfo
	require.Equal(t, OK, fs.Stat("SD:/cfg", &fi))
	assert.Equal(t, AmHid|AmRdo, fi.Attrib&(AmHid|AmRdo))
	assert.Equal(t, uint16(0x5821), fi.Fdate)
	assert.Equal(t, Denied, fs.Open(&f, "SD:/cfg", FaWrite))
	assert.Equal(t, Denied, fs.Unlink("SD:/cfg"))

	require.Equal(t, OK, fs.SetLabel("SD:data"))
	label, serial, r := fs.GetLabel()
	require.Equal(t, OK, r)
	assert.Equal(t, "DATA", label)
	assert.Equal(t, m.Serial(), serial)
	assert.Equal(t, InvalidName, fs.SetLabel("way-too-long-label"))

	m.SetWriteProtect(true)
	assert.Equal(t, WriteProtected, fs.Mkdir("SD:/x"))
}

func TestLocked(t *testing.T) {
	fs, _ := mounted(t, 64*1024)
	assert.False(t, fs.Locked())
	fs.sobj.Lock()
	assert.True(t, fs.Locked())
	fs.sobj.Unlock()
}
