package vfskit

import "fmt"

// InodeLayout splits a 32-bit inode into a drive field in the high bits,
// a folder field, and the backend item index in the low bits.
type InodeLayout struct {
	StorageBits uint
	FolderBits  uint
	ItemBits    uint
}

// DefaultInodeLayout reserves 2 drive bits, 10 folder bits and 20 item
// bits.
var DefaultInodeLayout = InodeLayout{StorageBits: 2, FolderBits: 10, ItemBits: 20}

func (l InodeLayout) validate() error {
	if l.StorageBits == 0 || l.StorageBits+l.FolderBits+l.ItemBits != 32 {
		return fmt.Errorf("%w: inode layout %d/%d/%d must fill 32 bits", ErrInvalid,
			l.StorageBits, l.FolderBits, l.ItemBits)
	}
	return nil
}

// MaxDrives returns the largest drive index the storage field holds.
func (l InodeLayout) MaxDrives() int {
	return 1<<l.StorageBits - 1
}

func mask(bits uint) uint32 {
	return uint32(1)<<bits - 1
}

// Pack combines the three fields. Each value is truncated to its width.
func (l InodeLayout) Pack(drive, folder, item uint32) uint32 {
	return (drive&mask(l.StorageBits))<<(l.FolderBits+l.ItemBits) |
		(folder&mask(l.FolderBits))<<l.ItemBits |
		item&mask(l.ItemBits)
}

// Storage returns the drive field.
func (l InodeLayout) Storage(ino uint32) uint32 {
	return ino >> (l.FolderBits + l.ItemBits) & mask(l.StorageBits)
}

// Folder returns the folder field.
func (l InodeLayout) Folder(ino uint32) uint32 {
	return ino >> l.ItemBits & mask(l.FolderBits)
}

// Item returns the item field.
func (l InodeLayout) Item(ino uint32) uint32 {
	return ino & mask(l.ItemBits)
}
