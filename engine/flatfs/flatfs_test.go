package flatfs

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func started(t *testing.T, sectors, size int) *FS {
	t.Helper()
	dev := NewDevice(sectors, size)
	require.Equal(t, OK, Format(dev))
	fs, c := Start(dev, func() time.Time { return time.Unix(1700000000, 0) })
	require.Equal(t, OK, c)
	return fs
}

func TestStartRequiresFormat(t *testing.T) {
	dev := NewDevice(8, 512)
	_, c := Start(dev, nil)
	assert.Equal(t, ErrNotFormatted, c)

	require.Equal(t, OK, Format(dev))
	_, c = Start(dev, nil)
	assert.Equal(t, OK, c)
}

func TestWriteReadAcrossSectors(t *testing.T) {
	fs := started(t, 8, 64)
	payload := bytes.Repeat([]byte("0123456789"), 20)

	var d Desc
	require.Equal(t, OK, fs.Open(&d, "data.bin", OpenCreate))
	n, c := fs.Write(&d, payload[:150])
	require.Equal(t, OK, c)
	require.Equal(t, 150, n)
	n, c = fs.Write(&d, payload[150:])
	require.Equal(t, OK, c)
	require.Equal(t, 50, n)
	require.Equal(t, OK, fs.Close(&d))

	require.Equal(t, OK, fs.Open(&d, "data.bin", OpenRead))
	assert.Equal(t, uint32(200), d.Len)
	assert.Equal(t, uint32(1700000000), d.Ctime)
	got := make([]byte, 256)
	n, c = fs.Read(&d, got)
	require.Equal(t, OK, c)
	assert.Equal(t, payload, got[:n])
	n, c = fs.Read(&d, got)
	require.Equal(t, OK, c)
	assert.Zero(t, n)

	d.Pos = 195
	n, _ = fs.Read(&d, got)
	assert.Equal(t, "56789", string(got[:n]))
	require.Equal(t, OK, fs.Close(&d))

	// The index survives a restart.
	fs2, c := Start(fs.dev, nil)
	require.Equal(t, OK, c)
	require.Equal(t, OK, fs2.Open(&d, "data.bin", OpenRead))
	assert.Equal(t, uint32(200), d.Len)
}

func TestFlashFull(t *testing.T) {
	fs := started(t, 3, 64)
	var d Desc
	require.Equal(t, OK, fs.Open(&d, "f", OpenCreate))
	n, c := fs.Write(&d, make([]byte, 200))
	assert.Equal(t, ErrFlashFull, c)
	assert.Equal(t, 128, n)
}

func TestOpenErrors(t *testing.T) {
	fs := started(t, 4, 128)
	var d Desc
	assert.Equal(t, ErrFileNotFound, fs.Open(&d, "nope", OpenRead))
	assert.Equal(t, ErrIllegalName, fs.Open(&d, "", OpenRead))
	assert.Equal(t, ErrIllegalName, fs.Open(&d, "name-that-is-far-too-long", OpenCreate))

	require.Equal(t, OK, fs.Open(&d, "ro", OpenCreate))
	require.Equal(t, OK, fs.Close(&d))
	require.Equal(t, OK, fs.Open(&d, "ro", OpenRead))
	_, c := fs.Write(&d, []byte("x"))
	assert.Equal(t, ErrNotWritable, c)

	require.Equal(t, OK, fs.Close(&d))
	assert.Equal(t, ErrDescInvalid, fs.Close(&d))
}

func TestDeleteRenameAndInfo(t *testing.T) {
	fs := started(t, 8, 128)
	var a, b Desc
	require.Equal(t, OK, fs.Open(&a, "a.txt", OpenCreate))
	_, _ = fs.Write(&a, []byte("alpha"))
	require.Equal(t, OK, fs.Close(&a))
	require.Equal(t, OK, fs.Open(&b, "b.txt", OpenCreate))
	require.Equal(t, OK, fs.Close(&b))

	require.Equal(t, OK, fs.Open(&b, "b.txt", OpenRaw))
	require.Equal(t, OK, fs.Delete(&b))

	require.Equal(t, OK, fs.Open(&a, "a.txt", OpenRaw))
	require.Equal(t, OK, fs.Open(&b, "c.txt", OpenCreate))
	require.Equal(t, OK, fs.Rename(&a, &b))

	var active []string
	var st Stat
	for fno := 0; ; fno++ {
		c := fs.Info(&st, fno)
		require.GreaterOrEqual(t, int(c), 0)
		if c == 0 {
			break
		}
		if c&StatActive != 0 {
			active = append(active, st.Name)
		}
	}
	assert.Equal(t, []string{"c.txt"}, active)

	var d Desc
	require.Equal(t, OK, fs.Open(&d, "c.txt", OpenRead))
	buf := make([]byte, 8)
	n, _ := fs.Read(&d, buf)
	assert.Equal(t, "alpha", string(buf[:n]))

	total, used, c := fs.DiskInfo()
	require.Equal(t, OK, c)
	assert.Equal(t, int64(7*128), total)
	assert.Equal(t, int64(128), used)
}

func TestSleep(t *testing.T) {
	fs := started(t, 4, 128)
	require.Equal(t, OK, fs.Sleep())
	var d Desc
	assert.Equal(t, ErrSleeping, fs.Open(&d, "x", OpenCreate))

	fs, c := Start(fs.dev, nil)
	require.Equal(t, OK, c)
	assert.Equal(t, OK, fs.Open(&d, "x", OpenCreate))
}
