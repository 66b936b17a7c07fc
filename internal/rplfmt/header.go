// Package rplfmt implements the big-endian ELF32 codec used for Wii U RPX
// images, including the two RPX-specific trailer sections (CRCS and
// FILEINFO) that an ordinary ELF reader has no notion of.
package rplfmt

import (
	"encoding/binary"
	"fmt"
)

// ELF32 header field offsets/sizes, big-endian only. This package never
// reads little-endian ELF; that case is rejected in Read.
const (
	HeaderSize = 52
	EIMag0     = 0x7f
	EIClass32  = 1
	EIDataBE   = 2

	EShNum    = 48 // index 0-based
	EShEntSiz = 46
)

// ELF machine/class constants relevant to the Espresso target.
const (
	EMPowerPC = 20
	ETExec    = 2
	ETDyn     = 3
)

// Section header types, including the two RPX-specific ones.
const (
	SHTNull     = 0
	SHTProgBits = 1
	SHTSymTab   = 2
	SHTStrTab   = 3
	SHTRela     = 4
	SHTNoBits   = 8

	SHTRPLExports  = 0x80000001
	SHTRPLImports  = 0x80000002
	SHTRPLCRCs     = 0x80000003
	SHTRPLFileInfo = 0x80000004
)

// Header is the fixed 52-byte ELF32 file header.
type Header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	PhOff     uint32
	ShOff     uint32
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16
}

// DecodeHeader parses the first 52 bytes of b as an ELF32-BE header.
func DecodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, fmt.Errorf("rplfmt: short header, want %d bytes got %d", HeaderSize, len(b))
	}
	copy(h.Ident[:], b[0:16])
	if h.Ident[0] != EIMag0 || h.Ident[1] != 'E' || h.Ident[2] != 'L' || h.Ident[3] != 'F' {
		return h, fmt.Errorf("rplfmt: bad magic %x", h.Ident[0:4])
	}
	if h.Ident[4] != EIClass32 {
		return h, fmt.Errorf("rplfmt: not ELFCLASS32")
	}
	if h.Ident[5] != EIDataBE {
		return h, fmt.Errorf("rplfmt: not ELFDATA2MSB (big-endian)")
	}
	be := binary.BigEndian
	h.Type = be.Uint16(b[16:18])
	h.Machine = be.Uint16(b[18:20])
	h.Version = be.Uint32(b[20:24])
	h.Entry = be.Uint32(b[24:28])
	h.PhOff = be.Uint32(b[28:32])
	h.ShOff = be.Uint32(b[32:36])
	h.Flags = be.Uint32(b[36:40])
	h.EhSize = be.Uint16(b[40:42])
	h.PhEntSize = be.Uint16(b[42:44])
	h.PhNum = be.Uint16(b[44:46])
	h.ShEntSize = be.Uint16(b[46:48])
	h.ShNum = be.Uint16(b[48:50])
	h.ShStrNdx = be.Uint16(b[50:52])
	return h, nil
}

// Encode writes the header back to a 52-byte big-endian buffer.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:16], h.Ident[:])
	be := binary.BigEndian
	be.PutUint16(b[16:18], h.Type)
	be.PutUint16(b[18:20], h.Machine)
	be.PutUint32(b[20:24], h.Version)
	be.PutUint32(b[24:28], h.Entry)
	be.PutUint32(b[28:32], h.PhOff)
	be.PutUint32(b[32:36], h.ShOff)
	be.PutUint32(b[36:40], h.Flags)
	be.PutUint16(b[40:42], h.EhSize)
	be.PutUint16(b[42:44], h.PhEntSize)
	be.PutUint16(b[44:46], h.PhNum)
	be.PutUint16(b[46:48], h.ShEntSize)
	be.PutUint16(b[48:50], h.ShNum)
	be.PutUint16(b[50:52], h.ShStrNdx)
	return b
}

// NewHeader builds a default ELF32-BE/PowerPC header for a freshly
// constructed RPX, with ShNum/ShOff left for the writer to fill in.
func NewHeader() Header {
	var h Header
	h.Ident[0] = EIMag0
	h.Ident[1] = 'E'
	h.Ident[2] = 'L'
	h.Ident[3] = 'F'
	h.Ident[4] = EIClass32
	h.Ident[5] = EIDataBE
	h.Ident[6] = 1 // EI_VERSION
	h.Type = ETExec
	h.Machine = EMPowerPC
	h.Version = 1
	h.EhSize = HeaderSize
	h.ShEntSize = SectionHeaderSize
	return h
}
