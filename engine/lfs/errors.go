package lfs

import "strconv"

// Error is a negative littlefs-style status code.
type Error int

const (
	ErrIO          Error = -5  // error during device operation
	ErrCorrupt     Error = -84 // corrupted
	ErrNoEnt       Error = -2  // no directory entry
	ErrExist       Error = -17 // entry already exists
	ErrNotDir      Error = -20 // entry is not a dir
	ErrIsDir       Error = -21 // entry is a dir
	ErrNotEmpty    Error = -39 // dir is not empty
	ErrBadF        Error = -9  // bad file number
	ErrFBig        Error = -27 // file too large
	ErrInval       Error = -22 // invalid parameter
	ErrNoSpc       Error = -28 // no space left on device
	ErrNoMem       Error = -12 // no more memory available
	ErrNoAttr      Error = -61 // no data/attr available
	ErrNameTooLong Error = -36 // file name too long
)

func (e Error) Error() string {
	return "lfs.err:" + strconv.Itoa(int(e))
}

// Open flags.
const (
	ORdOnly = 1
	OWrOnly = 2
	ORdWr   = ORdOnly | OWrOnly
	OCreat  = 0x0100
	OExcl   = 0x0200
	OTrunc  = 0x0400
	OAppend = 0x0800
)

// Seek origins.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// Entry types.
const (
	TypeReg uint8 = 0x001
	TypeDir uint8 = 0x002
)

// NameMax is the longest accepted entry name.
const NameMax = 255
