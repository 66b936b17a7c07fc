package rplfmt

import "fmt"

// File is the in-memory model of a base RPX: header plus an ordered
// section list. Sections keep their original order from the file; callers
// that splice new sections in append before the CRCS/FILEINFO trailers.
type File struct {
	Header   Header
	Sections []*Section
	ShStrNdx int
}

// Read parses a complete ELF32-BE/RPX image.
func Read(b []byte) (*File, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	if h.ShOff == 0 || h.ShNum == 0 {
		return nil, fmt.Errorf("rplfmt: no section header table")
	}
	if int(h.ShStrNdx) >= int(h.ShNum) {
		return nil, fmt.Errorf("rplfmt: shstrndx %d out of range (shnum=%d)", h.ShStrNdx, h.ShNum)
	}

	f := &File{Header: h, ShStrNdx: int(h.ShStrNdx)}

	raw := make([]Section, h.ShNum)
	for i := 0; i < int(h.ShNum); i++ {
		off := int(h.ShOff) + i*SectionHeaderSize
		if off+SectionHeaderSize > len(b) {
			return nil, fmt.Errorf("rplfmt: section header %d out of bounds", i)
		}
		raw[i] = decodeSectionHeader(b[off : off+SectionHeaderSize])
	}

	strTab := raw[h.ShStrNdx]
	shstrtab, err := sliceBytes(b, strTab.Offset, strTab.Size, strTab.Type)
	if err != nil {
		return nil, fmt.Errorf("rplfmt: reading section header string table: %w", err)
	}

	for i := range raw {
		s := raw[i]
		s.Name = cString(shstrtab, s.NameIdx)
		body, err := sliceBytes(b, s.Offset, s.Size, s.Type)
		if err != nil {
			return nil, fmt.Errorf("rplfmt: section %d (%q): %w", i, s.Name, err)
		}
		s.Bytes = body
		if s.Type == SHTRela {
			s.Relas = decodeRelas(body, s.EntSize)
		}
		sec := s
		f.Sections = append(f.Sections, &sec)
	}
	return f, nil
}

// sliceBytes returns the file bytes for a section, or nil for a NOBITS
// (SHT_NOBITS) section which occupies no file space.
func sliceBytes(b []byte, offset, size, typ uint32) ([]byte, error) {
	if typ == SHTNoBits || size == 0 {
		return nil, nil
	}
	end := uint64(offset) + uint64(size)
	if end > uint64(len(b)) {
		return nil, fmt.Errorf("range [%d,%d) exceeds file length %d", offset, end, len(b))
	}
	out := make([]byte, size)
	copy(out, b[offset:end])
	return out, nil
}

func cString(tab []byte, idx uint32) string {
	if int(idx) >= len(tab) {
		return ""
	}
	end := idx
	for end < uint32(len(tab)) && tab[end] != 0 {
		end++
	}
	return string(tab[idx:end])
}

// Section looks up a section by exact name; returns nil if absent.
func (f *File) Section(name string) *Section {
	for _, s := range f.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SectionsByType returns every section whose Type matches.
func (f *File) SectionsByType(typ uint32) []*Section {
	var out []*Section
	for _, s := range f.Sections {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

// Index returns the position of s within f.Sections, or -1.
func (f *File) Index(s *Section) int {
	for i, sec := range f.Sections {
		if sec == s {
			return i
		}
	}
	return -1
}
