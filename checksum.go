package vfskit

import (
	"crypto/md5"  //nolint:gosec // MD5 used for checksum verification, not security
	"crypto/sha1" //nolint:gosec // SHA1 used for checksum verification, not security
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/cespare/xxhash/v2"
)

// ChecksumAlgorithm names a hash supported by Checksum.
type ChecksumAlgorithm string

const (
	ChecksumMD5    ChecksumAlgorithm = "md5"
	ChecksumSHA1   ChecksumAlgorithm = "sha1"
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
	ChecksumSHA512 ChecksumAlgorithm = "sha512"
	ChecksumCRC32  ChecksumAlgorithm = "crc32"
	ChecksumXXHash ChecksumAlgorithm = "xxhash"
)

// NewHasher creates a new hash.Hash for the given algorithm.
// Returns an error if the algorithm is not supported.
func NewHasher(algorithm ChecksumAlgorithm) (hash.Hash, error) {
	switch algorithm {
	case ChecksumMD5:
		return md5.New(), nil //nolint:gosec // MD5 used for checksum verification, not security
	case ChecksumSHA1:
		return sha1.New(), nil //nolint:gosec // SHA1 used for checksum verification, not security
	case ChecksumSHA256:
		return sha256.New(), nil
	case ChecksumSHA512:
		return sha512.New(), nil
	case ChecksumCRC32:
		return crc32.NewIEEE(), nil
	case ChecksumXXHash:
		return xxhash.New(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported checksum algorithm: %s", ErrNotSupported, algorithm)
	}
}

// Checksum hashes the contents of the file at path and returns the hex
// digest.
func (r *Registry) Checksum(path string, algorithm ChecksumAlgorithm) (string, error) {
	h, err := NewHasher(algorithm)
	if err != nil {
		return "", err
	}
	f, err := r.Open(path, OpenRead)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.CopyBuffer(h, f, make([]byte, r.copyBuf)); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Nibble lookup table for the 0x04C11DB7 polynomial.
var stmTable = [16]uint32{
	0x00000000, 0x04C11DB7, 0x09823B6E, 0x0D4326D9, 0x130476DC, 0x17C56B6B, 0x1A864DB2, 0x1E475005,
	0x2608EDB8, 0x22C9F00F, 0x2F8AD6D6, 0x2B4BCB61, 0x350C9B64, 0x31CD86D3, 0x3C8EA00A, 0x384FBDBD,
}

// STMCRC is the CRC-32 computed by the STM32 CRC unit: polynomial
// 0x04C11DB7, no reflection, no final xor, fed with 32-bit words.
type STMCRC struct {
	crc uint32
}

// NewSTMCRC returns a CRC in its initial state.
func NewSTMCRC() *STMCRC {
	return &STMCRC{crc: 0xFFFFFFFF}
}

// Word feeds one 32-bit word.
func (c *STMCRC) Word(w uint32) {
	crc := c.crc ^ w
	for range 8 {
		crc = crc<<4 ^ stmTable[crc>>28]
	}
	c.crc = crc
}

// Write feeds p as little-endian words. A trailing partial word is zero
// padded.
func (c *STMCRC) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) >= 4 {
		c.Word(binary.LittleEndian.Uint32(p))
		p = p[4:]
	}
	if len(p) > 0 {
		var tail [4]byte
		copy(tail[:], p)
		c.Word(binary.LittleEndian.Uint32(tail[:]))
	}
	return n, nil
}

// Sum32 returns the current value.
func (c *STMCRC) Sum32() uint32 {
	return c.crc
}

// CRC returns the STM32-compatible CRC of the file at path. The file size
// is fed first as a 64-bit value, then the contents in blocks of the copy
// buffer size.
func (r *Registry) CRC(path string) (uint32, error) {
	info, err := r.Stat(path)
	if err != nil {
		return 0, err
	}
	c := NewSTMCRC()
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(info.Size))
	_, _ = c.Write(size[:])

	f, err := r.Open(path, OpenRead)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// whole words per block; only the last block may be short
	buf := make([]byte, (r.copyBuf+3)&^3)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			_, _ = c.Write(buf[:n])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return c.Sum32(), nil
		}
		if err != nil {
			return 0, err
		}
	}
}
