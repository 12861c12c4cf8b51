package vfskit

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitwiseCRC is the textbook MSB-first CRC-32 over little-endian words.
func bitwiseCRC(crc uint32, data []byte) uint32 {
	for len(data)%4 != 0 {
		data = append(data, 0)
	}
	for i := 0; i < len(data); i += 4 {
		crc ^= binary.LittleEndian.Uint32(data[i:])
		for range 32 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func TestSTMCRC(t *testing.T) {
	c := NewSTMCRC()
	c.Word(0)
	assert.Equal(t, uint32(0xC704DD7B), c.Sum32())

	for _, s := range []string{"", "a", "abcd", "hello, world", strings.Repeat("xyz", 100)} {
		c := NewSTMCRC()
		_, _ = c.Write([]byte(s))
		assert.Equal(t, bitwiseCRC(0xFFFFFFFF, []byte(s)), c.Sum32(), "%q", s)
	}
}

func TestRegistryCRC(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))
	content := strings.Repeat("0123456789", 50) // 500 bytes, not a buffer multiple

	size := make([]byte, 8)
	binary.LittleEndian.PutUint64(size, uint64(len(content)))
	want := bitwiseCRC(bitwiseCRC(0xFFFFFFFF, size), []byte(content))

	for _, prefix := range allDrives {
		writeFile(t, r, prefix+"/crc.txt", content)
		got, err := r.CRC(prefix + "/crc.txt")
		require.NoError(t, err, prefix)
		assert.Equal(t, want, got, prefix)
	}

	_, err := r.CRC("SD:/missing")
	assert.True(t, IsNotExist(err))
}

func TestChecksum(t *testing.T) {
	r := newTestRegistry(t, testDrives(t))
	writeFile(t, r, "SPI:/hello.txt", "hello")

	tests := []struct {
		algo ChecksumAlgorithm
		want string
	}{
		{ChecksumMD5, "5d41402abc4b2a76b9719d911017c592"},
		{ChecksumSHA1, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{ChecksumSHA256, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{ChecksumCRC32, "3610a686"},
	}
	for _, tt := range tests {
		got, err := r.Checksum("SPI:/hello.txt", tt.algo)
		require.NoError(t, err, tt.algo)
		assert.Equal(t, tt.want, got, tt.algo)
	}

	sum, err := r.Checksum("SPI:/hello.txt", ChecksumXXHash)
	require.NoError(t, err)
	assert.Len(t, sum, 16)

	_, err = r.Checksum("SPI:/hello.txt", "rot13")
	assert.ErrorIs(t, err, ErrNotSupported)
}
