package flatfs

import "strconv"

// Code is a JesFS-style status. Negative values are errors; positive
// values carry counts or flags.
type Code int16

const (
	OK              Code = 0
	ErrTimeout      Code = -101 // flash did not become ready
	ErrNotFormatted Code = -108 // index magic missing
	ErrIllegalParam Code = -110 // bad argument
	ErrFlashFull    Code = -111 // no free data sector
	ErrWrite        Code = -120 // write verification failed
	ErrIndexFull    Code = -113 // index sector exhausted
	ErrFileNotFound Code = -124 // no file with that name
	ErrDescInvalid  Code = -129 // descriptor not open
	ErrIllegalName  Code = -139 // empty or too long name
	ErrNotWritable  Code = -142 // descriptor not opened for writing
	ErrBadIndex     Code = -143 // descriptor points at a stale slot
	ErrBusy         Code = -147 // device busy
	ErrSleeping     Code = -148 // device in deep sleep
)

func (c Code) Error() string {
	return "jesfs.err:" + strconv.Itoa(int(c))
}

// Open flags.
const (
	OpenRead   = 1 << iota // open existing file for reading
	OpenCreate             // create, replacing any existing file
	OpenWrite              // allow appending to an existing file
	OpenRaw                // open regardless of state
)

// Stat flags returned by Info.
const (
	StatActive   = 1 << iota // live file
	StatInactive             // deleted, slot not yet reclaimed
	StatUnclosed             // file was never closed after creation
)

// FNameLen is the longest file name the index stores.
const FNameLen = 21
