package vfskit

// One table per engine. Codes missing from a table normalize to ErrIO.

var fatCodes = map[int]error{
	1:  ErrIO,           // disk error
	2:  ErrInternal,     // internal assertion
	3:  ErrBusy,         // not ready
	4:  ErrNotExist,     // no file
	5:  ErrNotDir,       // no path
	6:  ErrInvalid,      // invalid name
	7:  ErrPermission,   // denied
	8:  ErrExist,        // exist
	9:  ErrBadHandle,    // invalid object
	10: ErrReadOnly,     // write protected
	11: ErrNoDevice,     // invalid drive
	12: ErrNotMounted,   // not enabled
	13: ErrNoFilesystem, // no filesystem
	14: ErrInvalid,      // mkfs aborted
	15: ErrTimeout,      // timeout
	16: ErrLocked,       // locked
	17: ErrNoMemory,     // not enough core
	18: ErrTooManyOpen,  // too many open files
	19: ErrInvalid,      // invalid parameter
}

var lfsCodes = map[int]error{
	-5:  ErrIO,
	-84: ErrNoFilesystem,
	-2:  ErrNotExist,
	-17: ErrExist,
	-20: ErrNotDir,
	-21: ErrIsDir,
	-39: ErrNotEmpty,
	-9:  ErrBadHandle,
	-27: ErrNoSpace,
	-22: ErrInvalid,
	-28: ErrNoSpace,
	-12: ErrNoMemory,
	-61: ErrNotExist,
	-36: ErrInvalid,
}

var flatCodes = map[int]error{
	-101: ErrTimeout,
	-108: ErrNoFilesystem,
	-110: ErrInvalid,
	-111: ErrNoSpace,
	-113: ErrNoSpace,
	-124: ErrNotExist,
	-129: ErrBadHandle,
	-139: ErrInvalid,
	-142: ErrBadHandle,
	-143: ErrBadHandle,
	-147: ErrBusy,
	-148: ErrBusy,
}

func normalize(backend string, table map[int]error, code int) error {
	err, ok := table[code]
	if !ok {
		err = ErrIO
	}
	return &BackendError{Backend: backend, Code: code, Err: err}
}

// FATError normalizes a FAT result code. Zero is success.
func FATError(code int) error {
	if code == 0 {
		return nil
	}
	return normalize("fat", fatCodes, code)
}

// LFSError normalizes a log-structured flash status. Non-negative values
// are success.
func LFSError(code int) error {
	if code >= 0 {
		return nil
	}
	return normalize("lfs", lfsCodes, code)
}

// FlatError normalizes a flat flash status. Non-negative values are
// success.
func FlatError(code int) error {
	if code >= 0 {
		return nil
	}
	return normalize("flat", flatCodes, code)
}
