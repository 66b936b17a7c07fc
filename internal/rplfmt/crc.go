package rplfmt

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// RecomputeCRCS rebuilds the CRCS trailer section over the file's current
// section order. Slot i is crc32(section[i].Bytes) unless that section is
// NOBITS, is the CRCS section itself, or has no bytes — in which case the
// slot is zero. Must be called after all splicing and hook application, on
// the final section order.
func (f *File) RecomputeCRCS() error {
	crcs := f.lastOfType(SHTRPLCRCs)
	if crcs == nil {
		return fmt.Errorf("rplfmt: no CRCS section present")
	}
	buf := make([]byte, len(f.Sections)*4)
	for i, s := range f.Sections {
		var v uint32
		if s.Type != SHTNoBits && s.Type != SHTRPLCRCs && len(s.Bytes) > 0 {
			v = crc32.ChecksumIEEE(s.Bytes)
		}
		binary.BigEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	crcs.Bytes = buf
	crcs.Size = uint32(len(buf))
	return nil
}

func (f *File) lastOfType(typ uint32) *Section {
	for i := len(f.Sections) - 1; i >= 0; i-- {
		if f.Sections[i].Type == typ {
			return f.Sections[i]
		}
	}
	return nil
}
