// Package binutil provides the big-endian packing and alignment primitives
// shared by the ELF/RPX codec, the hook encoder, and the link driver.
package binutil

import "encoding/binary"

// Align rounds x up to the next multiple of a, where a is a power of two.
// align(x,a) = ((x-1)|(a-1))+1, the formula the original tool uses verbatim.
func Align(x, a uint32) uint32 {
	return ((x - 1) | (a - 1)) + 1
}

// Align64 is the 64-bit-address variant of Align.
func Align64(x, a uint64) uint64 {
	return ((x - 1) | (a - 1)) + 1
}

// IsPowerOfTwo reports whether x is a nonzero power of two.
func IsPowerOfTwo(x uint32) bool {
	return x > 0 && x&(x-1) == 0
}

// PutU16 returns the big-endian encoding of v.
func PutU16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// PutU32 returns the big-endian encoding of v.
func PutU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// PutU64 returns the big-endian encoding of v.
func PutU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// PutS32 returns the big-endian two's-complement encoding of v.
func PutS32(v int32) []byte {
	return PutU32(uint32(v))
}

// PutS64 returns the big-endian two's-complement encoding of v.
func PutS64(v int64) []byte {
	return PutU64(uint64(v))
}
