package vfskit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/vfskit/engine/fatfs"
	"github.com/gobeaver/vfskit/engine/flatfs"
)

func TestNewRegistryRejectsBadTables(t *testing.T) {
	fat := func() Backend { return NewFATBackend(fatfs.NewMedium(1 << 20)) }
	tests := []struct {
		name  string
		specs []DriveSpec
		want  error
	}{
		{"empty prefix", []DriveSpec{{Prefix: " : ", Backend: fat()}}, ErrEmptyPrefix},
		{"nil backend", []DriveSpec{{Prefix: "SD:"}}, ErrNilBackend},
		{"duplicate ignoring case", []DriveSpec{{Prefix: "SD:", Backend: fat()}, {Prefix: "sd", Backend: fat()}}, ErrDuplicatePrefix},
		{"too many drives", []DriveSpec{
			{Prefix: "A:", Backend: fat()}, {Prefix: "B:", Backend: fat()},
			{Prefix: "C:", Backend: fat()}, {Prefix: "D:", Backend: fat()},
		}, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.specs)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := NewRegistry(nil, WithInodeLayout(InodeLayout{StorageBits: 2, FolderBits: 2, ItemBits: 2}))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestResolve(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))

	tests := []struct {
		path string
		want string
	}{
		{"SD:/a.txt", "SD:"},
		{"sd:/a.txt", "SD:"},
		{"Spi:\\logs\\x", "SPI:"},
		{"DF:", "DF:"},
	}
	for _, tt := range tests {
		d, err := r.resolve(tt.path, false)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, d.Prefix())
	}

	_, err := r.resolve("USB:/x", false)
	assert.ErrorIs(t, err, ErrNoDevice)
	// bare paths need a single-drive table
	_, err = r.resolve("/a.txt", false)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestResolveSingleDrive(t *testing.T) {
	r := newTestRegistry(t, []DriveSpec{{Prefix: "SPI", Backend: newLFSBackend(t), Fixed: true, AutoFormat: true}})

	d, err := r.resolve("/notes.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "SPI:", d.Prefix())

	writeFile(t, r, "/notes.txt", "bare")
	assert.Equal(t, "bare", readFile(t, r, "SPI:/notes.txt"))

	// a foreign prefix still fails
	_, err = r.resolve("SD:/notes.txt", false)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestStrictAndForcedResolution(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))
	require.NoError(t, r.Mount("SD:", false))

	// strict operations do not see the unmounted drive
	_, err := r.Open("SD:/a.txt", OpenRead)
	assert.ErrorIs(t, err, ErrNoDevice)
	_, err = r.Stat("SD:/a.txt")
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.ErrorIs(t, r.Mkdir("SD:/d"), ErrNoDevice)
	_, err = r.OpenDir("SD:/")
	assert.ErrorIs(t, err, ErrNoDevice)
	_, err = r.FsFree("SD:")
	assert.ErrorIs(t, err, ErrNoDevice)

	// forced ones do
	assert.NoError(t, r.CheckLock("SD:"))
	require.NoError(t, r.Format("SD:"))
	require.NoError(t, r.Mount("SD:", true))
	_, err = r.Stat("SD:/")
	assert.NoError(t, err)
}

func TestMountIndexes(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))
	for i, d := range r.Drives() {
		assert.Equal(t, i+1, d.Index(), d.Prefix())
		assert.True(t, d.Mounted())
	}

	prefix, ok := r.Volume(1)
	assert.True(t, ok)
	assert.Equal(t, "SPI:", prefix)
	_, ok = r.Volume(3)
	assert.False(t, ok)
	_, ok = r.Volume(-1)
	assert.False(t, ok)
}

func TestUnmountTwice(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))

	for range 2 {
		require.NoError(t, r.Mount("SPI:", false))
		d := r.Drives()[1]
		assert.Equal(t, 0, d.Index())
		assert.False(t, d.Mounted())
	}

	require.NoError(t, r.Mount("SPI:", true))
	assert.Equal(t, 2, r.Drives()[1].Index())
}

func TestMountEvents(t *testing.T) {
	medium := fatfs.NewMedium(1<<20, fatfs.Formatted())
	var got []Event
	r, err := NewRegistry([]DriveSpec{{
		Prefix:  "SD:",
		Backend: NewFATBackend(medium),
		OnEvent: func(d *Drive, ev Event) {
			assert.Equal(t, "SD:", d.Prefix())
			got = append(got, ev)
		},
	}}, WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, r.Mount("SD:", true))
	require.NoError(t, r.Mount("SD:", false))
	medium.Eject()
	err = r.Mount("SD:", true)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 0, r.Drives()[0].Index())

	assert.Equal(t, []Event{EventMounted, EventUnmounted, EventMountFailed}, got)
}

func TestRegistryEventHandler(t *testing.T) {
	var events []string
	r, err := NewRegistry(
		[]DriveSpec{{Prefix: "SD:", Backend: NewFATBackend(fatfs.NewMedium(1<<20, fatfs.Formatted()))}},
		WithLogger(quietLogger()),
		WithEventHandler(func(d *Drive, ev Event) { events = append(events, d.Prefix()+" "+ev.String()) }),
	)
	require.NoError(t, err)
	require.NoError(t, r.Init())
	require.NoError(t, r.Close())
	assert.Equal(t, []string{"SD: mounted", "SD: unmounted"}, events)
}

func TestInitAutoFormat(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))

	label, err := r.Label("SPI:")
	require.NoError(t, err)
	assert.Equal(t, "FLASH", label)

	// the flat engine keeps no label of its own
	label, err = r.Label("DF:")
	require.NoError(t, err)
	assert.Equal(t, "DATAFLASH", label)

	info, err := r.Stat("SPI:")
	require.NoError(t, err)
	assert.Equal(t, "FLASH", info.Name)
	assert.False(t, info.Created.IsZero())
}

func TestInitDefaultLabel(t *testing.T) {
	r := newTestRegistry(t, []DriveSpec{{
		Prefix:     "RAM:",
		Backend:    NewFATBackend(fatfs.NewMedium(1 << 20)),
		Fixed:      true,
		AutoFormat: true,
	}})
	label, err := r.Label("RAM:")
	require.NoError(t, err)
	assert.Regexp(t, `^RAM[0-9A-F]{4}$`, label)
}

func TestInitFailures(t *testing.T) {
	ejected := fatfs.NewMedium(1<<20, fatfs.Formatted())
	ejected.Eject()
	r, err := NewRegistry([]DriveSpec{
		{Prefix: "SD:", Backend: NewFATBackend(ejected)},
		{Prefix: "DF:", Backend: NewFlatBackend(flatfs.NewDevice(16, 0), ""), Fixed: true},
		{Prefix: "SPI:", Backend: newLFSBackend(t), Fixed: true, AutoFormat: true},
	}, WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	err = r.Init()
	require.Error(t, err)
	// only the fixed drive without auto format is reported
	assert.ErrorIs(t, err, ErrNoFilesystem)
	assert.NotErrorIs(t, err, ErrBusy)

	drives := r.Drives()
	assert.False(t, drives[0].Mounted())
	assert.False(t, drives[1].Mounted())
	assert.True(t, drives[2].Mounted())
	assert.Equal(t, 3, drives[2].Index())
}

func TestFormat(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))
	for _, prefix := range allDrives {
		t.Run(prefix, func(t *testing.T) {
			writeFile(t, r, prefix+"/gone.txt", "data")
			require.NoError(t, r.Format(prefix))

			d, err := r.resolve(prefix, false)
			require.NoError(t, err, "format remounts a mounted drive")
			assert.True(t, d.Mounted())
			_, err = r.Stat(prefix + "/gone.txt")
			assert.True(t, IsNotExist(err), "got %v", err)
		})
	}

	assert.ErrorIs(t, r.Format("USB:"), ErrNoDevice)
}

func TestFormatReadOnly(t *testing.T) {
	r := newTestRegistry(t, []DriveSpec{
		{Prefix: "SD:", Backend: NewFATBackend(fatfs.NewMedium(1<<20, fatfs.Formatted())), ReadOnly: true},
	})
	assert.ErrorIs(t, r.Format("SD:"), ErrReadOnly)
}

func TestCheckLock(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))
	for _, prefix := range allDrives {
		assert.NoError(t, r.CheckLock(prefix), prefix)
	}
	assert.ErrorIs(t, r.CheckLock("USB:"), ErrNoDevice)
}

func TestCloseUnmountsEverything(t *testing.T) {
	r, err := NewRegistry(testDrives(t), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, r.Init())

	f, err := r.Open("SPI:/open.txt", OpenWrite|OpenCreate)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	for _, d := range r.Drives() {
		assert.False(t, d.Mounted(), d.Prefix())
	}

	// the handle outlived its drive
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.True(t, errors.Is(f.Close(), ErrNotMounted))
	assert.NoError(t, f.Close())
}
