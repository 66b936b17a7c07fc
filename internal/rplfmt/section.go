package rplfmt

import "encoding/binary"

// SectionHeaderSize is the on-disk size of one Elf32_Shdr entry.
const SectionHeaderSize = 40

// Section-class address spaces (Espresso convention), per the codec's
// text/data/load-dyn end-offset bookkeeping.
const (
	TextRangeLo = 0x02000000
	TextRangeHi = 0x10000000
	DataRangeLo = 0x10000000
	DataRangeHi = 0xC0000000
	DynaRangeLo = 0xC0000000
	DynaRangeHi = 0xC8000000
)

// RelaEntry is one Elf32_Rela triple.
type RelaEntry struct {
	Offset uint32
	Info   uint32
	Addend int32
}

// Symbol returns the symbol-table index this relocation targets.
func (r RelaEntry) Symbol() uint32 { return r.Info >> 8 }

// Type returns the relocation-type byte.
func (r RelaEntry) Type() uint32 { return r.Info & 0xff }

// Section is one in-memory ELF section: header fields plus raw bytes and,
// for SHT_RELA sections, the parsed relocation list.
type Section struct {
	NameIdx   uint32
	Name      string
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	AddrAlign uint32
	EntSize   uint32

	Bytes []byte
	Relas []RelaEntry
}

// End returns Addr+Size, the first address past this section.
func (s *Section) End() uint32 { return s.Addr + s.Size }

// IsAlloc reports whether this section occupies virtual address space.
func (s *Section) IsAlloc() bool { return s.Flags&0x2 != 0 } // SHF_ALLOC

func decodeSectionHeader(b []byte) Section {
	be := binary.BigEndian
	return Section{
		NameIdx:   be.Uint32(b[0:4]),
		Type:      be.Uint32(b[4:8]),
		Flags:     be.Uint32(b[8:12]),
		Addr:      be.Uint32(b[12:16]),
		Offset:    be.Uint32(b[16:20]),
		Size:      be.Uint32(b[20:24]),
		Link:      be.Uint32(b[24:28]),
		Info:      be.Uint32(b[28:32]),
		AddrAlign: be.Uint32(b[32:36]),
		EntSize:   be.Uint32(b[36:40]),
	}
}

func encodeSectionHeader(s *Section) []byte {
	b := make([]byte, SectionHeaderSize)
	be := binary.BigEndian
	be.PutUint32(b[0:4], s.NameIdx)
	be.PutUint32(b[4:8], s.Type)
	be.PutUint32(b[8:12], s.Flags)
	be.PutUint32(b[12:16], s.Addr)
	be.PutUint32(b[16:20], s.Offset)
	be.PutUint32(b[20:24], s.Size)
	be.PutUint32(b[24:28], s.Link)
	be.PutUint32(b[28:32], s.Info)
	be.PutUint32(b[32:36], s.AddrAlign)
	be.PutUint32(b[36:40], s.EntSize)
	return b
}

func decodeRelas(b []byte, entSize uint32) []RelaEntry {
	if entSize == 0 {
		entSize = 12
	}
	n := uint32(len(b)) / entSize
	out := make([]RelaEntry, 0, n)
	be := binary.BigEndian
	for i := uint32(0); i < n; i++ {
		off := i * entSize
		out = append(out, RelaEntry{
			Offset: be.Uint32(b[off : off+4]),
			Info:   be.Uint32(b[off+4 : off+8]),
			Addend: int32(be.Uint32(b[off+8 : off+12])),
		})
	}
	return out
}

func encodeRelas(relas []RelaEntry) []byte {
	b := make([]byte, len(relas)*12)
	be := binary.BigEndian
	for i, r := range relas {
		off := i * 12
		be.PutUint32(b[off:off+4], r.Offset)
		be.PutUint32(b[off+4:off+8], r.Info)
		be.PutUint32(b[off+8:off+12], uint32(r.Addend))
	}
	return b
}
