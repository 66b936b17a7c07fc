package rplfmt

import (
	"encoding/binary"
	"fmt"
)

// FileInfoMagic is the expected first 4 bytes of an SHT_RPL_FILEINFO
// section's payload.
const FileInfoMagic = 0xCAFE0402

// FileInfo is a thin accessor over the FILEINFO trailer's byte layout;
// fields not touched by this codec (everything outside the four offsets
// the splice engine rewrites) are left untouched in the underlying bytes.
type FileInfo struct {
	sec *Section
}

// FileInfoOf returns a FileInfo view over f's trailing FILEINFO section.
func (f *File) FileInfoOf() (*FileInfo, error) {
	sec := f.lastOfType(SHTRPLFileInfo)
	if sec == nil {
		return nil, fmt.Errorf("rplfmt: no FILEINFO section present")
	}
	if len(sec.Bytes) < 80 {
		return nil, fmt.Errorf("rplfmt: FILEINFO section too short (%d bytes)", len(sec.Bytes))
	}
	magic := binary.BigEndian.Uint32(sec.Bytes[0:4])
	if magic != FileInfoMagic {
		return nil, fmt.Errorf("rplfmt: bad FILEINFO magic %#x, want %#x", magic, uint32(FileInfoMagic))
	}
	return &FileInfo{sec: sec}, nil
}

// TextEnd/DataEnd/DynaEnd are absolute addresses: TextEnd is stored as
// text_end-0x02000000, DataEnd as data_end-0x10000000, DynaEnd as
// dyna_end-0xC0000000.

func (fi *FileInfo) TextEnd() uint32 {
	return binary.BigEndian.Uint32(fi.sec.Bytes[4:8]) + TextRangeLo
}

func (fi *FileInfo) SetTextEnd(addr uint32) {
	binary.BigEndian.PutUint32(fi.sec.Bytes[4:8], addr-TextRangeLo)
}

func (fi *FileInfo) DataEnd() uint32 {
	return binary.BigEndian.Uint32(fi.sec.Bytes[12:16]) + DataRangeLo
}

func (fi *FileInfo) SetDataEnd(addr uint32) {
	binary.BigEndian.PutUint32(fi.sec.Bytes[12:16], addr-DataRangeLo)
}

func (fi *FileInfo) DynaEnd() uint32 {
	return binary.BigEndian.Uint32(fi.sec.Bytes[20:24]) + DynaRangeLo
}

// SetDynaEnd sets dyna_end and, per the codec's trailer-rewrite rule,
// zeroes bytes 76..80 whenever the dyna range is touched.
func (fi *FileInfo) SetDynaEnd(addr uint32) {
	binary.BigEndian.PutUint32(fi.sec.Bytes[20:24], addr-DynaRangeLo)
	for i := 76; i < 80; i++ {
		fi.sec.Bytes[i] = 0
	}
}
