package vfskit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMkdirRemove(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))

	for _, prefix := range []string{"SD:", "SPI:"} {
		t.Run(prefix, func(t *testing.T) {
			require.NoError(t, r.Mkdir(prefix+"/dir"))
			assert.True(t, IsExist(r.Mkdir(prefix+"/dir")))
			assert.ErrorIs(t, r.Mkdir(prefix+"/"), ErrExist)

			writeFile(t, r, prefix+"/dir/f.txt", "x")
			err := r.Remove(prefix + "/dir")
			require.Error(t, err, "non-empty directory")
			assert.Contains(t, []Kind{KindNotEmpty, KindPermission}, KindOf(err))

			require.NoError(t, r.Remove(prefix+"/dir/f.txt"))
			require.NoError(t, r.Remove(prefix+"/dir"))
			_, err = r.Stat(prefix + "/dir")
			assert.True(t, IsNotExist(err))

			assert.ErrorIs(t, r.Remove(prefix), ErrInvalid)
			assert.True(t, IsNotExist(r.Remove(prefix+"/nothing")))
		})
	}
}

func TestRename(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))

	for _, prefix := range allDrives {
		t.Run(prefix, func(t *testing.T) {
			writeFile(t, r, prefix+"/old.txt", "content")
			writeFile(t, r, prefix+"/other.txt", "other")

			require.NoError(t, r.Rename(prefix+"/old.txt", prefix+"/new.txt"))
			assert.Equal(t, "content", readFile(t, r, prefix+"/new.txt"))
			_, err := r.Stat(prefix + "/old.txt")
			assert.True(t, IsNotExist(err))

			// a bare new name stays on the drive
			require.NoError(t, r.Rename(prefix+"/new.txt", "bare.txt"))
			assert.Equal(t, "content", readFile(t, r, prefix+"/bare.txt"))

			if prefix == "SPI:" {
				// littlefs semantics: the destination file is replaced
				require.NoError(t, r.Rename(prefix+"/bare.txt", prefix+"/other.txt"))
				assert.Equal(t, "content", readFile(t, r, prefix+"/other.txt"))
			} else {
				assert.True(t, IsExist(r.Rename(prefix+"/bare.txt", prefix+"/other.txt")))
			}
			assert.ErrorIs(t, r.Rename(prefix, prefix+"/x"), ErrInvalid)
		})
	}

	writeFile(t, r, "SD:/cross.txt", "x")
	assert.ErrorIs(t, r.Rename("SD:/cross.txt", "SPI:/cross.txt"), ErrInvalid)
	assert.ErrorIs(t, r.Rename("SD:/cross.txt", "USB:/cross.txt"), ErrNoDevice)
}

func TestStatRoot(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))

	sd, err := r.Stat("SD:")
	require.NoError(t, err)
	assert.Equal(t, "SD:", sd.Name, "no label yet")
	assert.Equal(t, AttrDir|AttrRead|AttrWrite|AttrRemovable, sd.Attr)
	assert.Equal(t, r.layout.Pack(1, 0, 0), sd.Inode)
	assert.NotZero(t, sd.Blocks)

	spi, err := r.Stat(`SPI:\`)
	require.NoError(t, err)
	assert.Equal(t, "FLASH", spi.Name)
	assert.Zero(t, spi.Attr&AttrRemovable)
	assert.Equal(t, spi.Created, spi.Modified)
}

func TestTouch(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))
	stamp := time.Date(2021, 6, 15, 10, 30, 20, 0, time.UTC)

	for _, prefix := range []string{"SD:", "SPI:"} {
		t.Run(prefix, func(t *testing.T) {
			path := prefix + "/touched.txt"
			writeFile(t, r, path, "x")
			require.NoError(t, r.Touch(path, Info{Created: stamp, Modified: stamp}))

			info, err := r.Stat(path)
			require.NoError(t, err)
			assert.True(t, stamp.Equal(info.Modified), "got %v", info.Modified)

			// zero times leave the entry alone
			require.NoError(t, r.Touch(path, Info{}))
			info, err = r.Stat(path)
			require.NoError(t, err)
			assert.True(t, stamp.Equal(info.Modified))
		})
	}

	require.NoError(t, r.Touch("SD:/touched.txt", Info{Modified: stamp, Attr: AttrHidden | AttrSystem}))
	info, err := r.Stat("SD:/touched.txt")
	require.NoError(t, err)
	assert.NotZero(t, info.Attr&AttrHidden)
	assert.NotZero(t, info.Attr&AttrSystem)

	writeFile(t, r, "DF:/touched.txt", "x")
	assert.ErrorIs(t, r.Touch("DF:/touched.txt", Info{Modified: stamp}), ErrNotSupported)
	assert.ErrorIs(t, r.Touch("SD:", Info{Modified: stamp}), ErrInvalid)
}

func TestModTimeFollowsWrites(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRegistry(t, testDrives(t), WithClock(func() time.Time { return now }))

	f, err := r.Open("SPI:/clock.txt", OpenWrite|OpenCreate)
	require.NoError(t, err)
	_, err = f.WriteString("tick")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	info, err := r.Stat("SPI:/clock.txt")
	require.NoError(t, err)
	assert.True(t, now.Equal(info.Modified), "got %v", info.Modified)
}

func TestUsage(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))

	for _, prefix := range allDrives {
		t.Run(prefix, func(t *testing.T) {
			size, err := r.FsSize(prefix)
			require.NoError(t, err)
			free, err := r.FsFree(prefix)
			require.NoError(t, err)
			assert.Positive(t, size)
			assert.LessOrEqual(t, free, size)

			writeFile(t, r, prefix+"/big.bin", string(make([]byte, 20000)))
			after, err := r.FsFree(prefix)
			require.NoError(t, err)
			assert.Less(t, after, free)
		})
	}

	tests := []struct {
		prefix string
		want   FSType
	}{
		{"SD:", TypeFAT},
		{"SPI:", TypeLFS},
		{"DF:", TypeFlat},
	}
	for _, tt := range tests {
		got, err := r.FsType(tt.prefix)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := r.FsType("USB:")
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.Equal(t, "JESFS", TypeFlat.String())
}

func TestLabels(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))

	require.NoError(t, r.SetLabel("SD:CARD"))
	label, err := r.Label("SD:")
	require.NoError(t, err)
	assert.Equal(t, "CARD", label)

	require.NoError(t, r.SetLabel("spi:Internal"))
	label, err = r.Label("SPI:/")
	require.NoError(t, err)
	assert.Equal(t, "Internal", label)

	assert.ErrorIs(t, r.SetLabel("DF:NEW"), ErrNotSupported)
	assert.ErrorIs(t, r.SetLabel("SD:BAD*NAME"), ErrInvalid)
}
