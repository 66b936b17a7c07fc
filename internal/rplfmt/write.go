package rplfmt

import (
	"fmt"

	"github.com/zboralski/clpc/internal/binutil"
)

// AppendSection inserts a newly spliced section immediately before the
// CRCS/FILEINFO trailers, per the splice engine's ordering rule. Per the
// recorded open question decision, appended sections carry an empty name
// (NameIdx/Name left zero) rather than a synthesized one.
func (f *File) AppendSection(s *Section) error {
	n := len(f.Sections)
	if n < 2 {
		return fmt.Errorf("rplfmt: file has no CRCS/FILEINFO trailer to insert before")
	}
	if f.Sections[n-1].Type != SHTRPLFileInfo || f.Sections[n-2].Type != SHTRPLCRCs {
		return fmt.Errorf("rplfmt: last two sections are not CRCS/FILEINFO (got types %#x, %#x)",
			f.Sections[n-2].Type, f.Sections[n-1].Type)
	}
	tail := append([]*Section{}, f.Sections[n-2:]...)
	f.Sections = append(f.Sections[:n-2], s)
	f.Sections = append(f.Sections, tail...)
	return nil
}

// Write lays sections out in their current order (honouring sh_addralign),
// regenerates the section header table at end of file, and returns the
// complete image bytes. Unknown section types are copied through verbatim;
// NOBITS sections occupy no file space and keep their sh_size.
func (f *File) Write() ([]byte, error) {
	out := make([]byte, HeaderSize)

	offsets := make([]uint32, len(f.Sections))
	for i, s := range f.Sections {
		if s.Type == SHTNoBits || len(s.Bytes) == 0 {
			offsets[i] = uint32(len(out))
			continue
		}
		align := s.AddrAlign
		if align == 0 {
			align = 1
		}
		cur := uint32(len(out))
		padded := binutil.Align(cur, align)
		if padded < cur {
			padded = cur
		}
		for uint32(len(out)) < padded {
			out = append(out, 0)
		}
		offsets[i] = uint32(len(out))
		body := s.Bytes
		if s.Type == SHTRela {
			body = encodeRelas(s.Relas)
		}
		out = append(out, body...)
	}

	shOff := binutil.Align(uint32(len(out))+1, 4) - 1
	for uint32(len(out)) < shOff {
		out = append(out, 0)
	}
	shOff = uint32(len(out))

	for i, s := range f.Sections {
		s.Offset = offsets[i]
		if s.Type == SHTRela {
			s.Size = uint32(len(s.Relas) * 12)
		} else if s.Type != SHTNoBits {
			s.Size = uint32(len(s.Bytes))
		}
		out = append(out, encodeSectionHeader(s)...)
	}

	f.Header.ShOff = shOff
	f.Header.ShNum = uint16(len(f.Sections))
	f.Header.ShStrNdx = uint16(f.ShStrNdx)
	copy(out[0:HeaderSize], f.Header.Encode())

	return out, nil
}
