package fatfs

import "strconv"

// Result is the status code returned by every engine entry point.
type Result int

const (
	OK               Result = iota // succeeded
	DiskErr                        // a hard error occurred in the low level disk I/O layer
	IntErr                         // assertion failed
	NotReady                       // the physical drive cannot work
	NoFile                         // could not find the file
	NoPath                         // could not find the path
	InvalidName                    // the path name format is invalid
	Denied                         // access denied due to prohibited access or directory full
	Exist                          // access denied due to prohibited access
	InvalidObject                  // the file/directory object is invalid
	WriteProtected                 // the physical drive is write protected
	InvalidDrive                   // the logical drive number is invalid
	NotEnabled                     // the volume has no work area
	NoFilesystem                   // there is no valid FAT volume
	MkfsAborted                    // the Mkfs aborted due to any problem
	Timeout                        // could not get a grant to access the volume within defined period
	Locked                         // the operation is rejected according to the file sharing policy
	NotEnoughCore                  // working buffer could not be allocated
	TooManyOpenFiles               // number of open files exceeds the limit
	InvalidParameter               // given parameter is invalid
)

func (r Result) Error() string {
	return "fatfs.fr:" + strconv.Itoa(int(r))
}

// Access and open mode flags.
const (
	FaRead         byte = 0x01
	FaWrite        byte = 0x02
	FaOpenExisting byte = 0x00
	FaCreateNew    byte = 0x04
	FaCreateAlways byte = 0x08
	FaOpenAlways   byte = 0x10
	FaOpenAppend   byte = 0x30
)

// Attribute bits.
const (
	AmRdo byte = 0x01
	AmHid byte = 0x02
	AmSys byte = 0x04
	AmDir byte = 0x10
	AmArc byte = 0x20
)
