// Package splice grafts a linked object's text/data sections into a base
// RPX image, assigning symbol-table addresses in the dynamic-load range
// after the base image's own, and relinking relocations and the FILEINFO trailer to match.
package splice

import (
	"encoding/binary"
	"fmt"

	"github.com/zboralski/clpc/internal/binutil"
	"github.com/zboralski/clpc/internal/rplfmt"
)

// Kind identifies which address-space class a spliced entry belongs to,
// since .bss can never be patched and the others carry an optional rela
// companion.
type Kind int

const (
	KindText Kind = iota
	KindRodata
	KindData
	KindBss
)

// EntryRange is one spliced section the patch engine may write into.
type EntryRange struct {
	Kind    Kind
	Section *rplfmt.Section
	Rela    *rplfmt.Section // nil if the section carries no relocations
}

// Result carries the entry ranges and recomputed end addresses a caller
// needs to drive patch application and FILEINFO/console packaging.
type Result struct {
	Entries []EntryRange
	TextEnd uint32
	DataEnd uint32
	DynaEnd uint32
}

type appendSpec struct {
	kind     Kind
	sec      *rplfmt.Section
	baseName string
}

// Splice appends obj's .text/.rodata/.data/.bss sections (and their
// .rela.* companions) into base immediately before the CRCS/FILEINFO
// trailer, assigns .symtab/.strtab addresses starting at symsAddr,
// relinks relocation sh_link/sh_info and offsets, and rewrites the
// FILEINFO trailer's text/data/dyna end fields. baseDataEnd/baseDynaEnd
// are the base image's own end addresses (scanned before splicing) used
// to decide whether the data/dyna fields actually grew.
func Splice(base, obj *rplfmt.File, symsAddr, baseDataEnd, baseDynaEnd uint32) (*Result, error) {
	text := obj.Section(".text")
	if text == nil {
		return nil, fmt.Errorf("splice: linked object has no .text section")
	}
	rodata := obj.Section(".rodata")
	data := obj.Section(".data")
	bss := obj.Section(".bss")
	relaText := obj.Section(".rela.text")
	relaRodata := obj.Section(".rela.rodata")
	relaData := obj.Section(".rela.data")
	symtab := obj.Section(".symtab")
	strtab := obj.Section(".strtab")

	specs := []appendSpec{
		{KindText, text, ".text"},
		{KindText, relaText, ".rela.text"},
		{KindRodata, rodata, ".rodata"},
		{KindRodata, relaRodata, ".rela.rodata"},
		{KindData, data, ".data"},
		{KindData, relaData, ".rela.data"},
		{KindBss, bss, ".bss"},
	}

	for _, sp := range specs {
		if sp.sec == nil {
			continue
		}
		if baseSec := base.Section(sp.baseName); baseSec != nil {
			sp.sec.Flags = baseSec.Flags
		}
		sp.sec.NameIdx = 0
		sp.sec.Name = ""
		if err := base.AppendSection(sp.sec); err != nil {
			return nil, fmt.Errorf("splice: appending %s: %w", sp.baseName, err)
		}
	}

	symtabIndex := -1
	if symtab != nil {
		symsAddr = alignSection(symsAddr, symtab)
		symtab.Addr = symsAddr
		symsAddr += uint32(len(symtab.Bytes))
		symtab.NameIdx, symtab.Name = 0, ""
		if err := base.AppendSection(symtab); err != nil {
			return nil, fmt.Errorf("splice: appending .symtab: %w", err)
		}
		symtabIndex = base.Index(symtab)
	}
	if strtab != nil {
		symsAddr = alignSection(symsAddr, strtab)
		strtab.Addr = symsAddr
		symsAddr += uint32(len(strtab.Bytes))
		strtab.NameIdx, strtab.Name = 0, ""
		if err := base.AppendSection(strtab); err != nil {
			return nil, fmt.Errorf("splice: appending .strtab: %w", err)
		}
	}

	relinkRelocations(base, text, relaText, symtabIndex)
	relinkRelocations(base, rodata, relaRodata, symtabIndex)
	relinkRelocations(base, data, relaData, symtabIndex)

	if symtab != nil && strtab != nil {
		symtab.Link = uint32(base.Index(strtab))
	}

	textEnd := text.Addr + text.Size
	dataEnd := endOf(0, rodata, data, bss)
	dynaEnd := symsAddr

	fi, err := base.FileInfoOf()
	if err != nil {
		return nil, err
	}
	fi.SetTextEnd(textEnd)
	if dataEnd > 0 {
		if dataEnd <= baseDataEnd {
			return nil, fmt.Errorf("splice: spliced data end 0x%08X does not exceed base data end 0x%08X", dataEnd, baseDataEnd)
		}
		fi.SetDataEnd(dataEnd)
	}
	if dynaEnd > baseDynaEnd {
		fi.SetDynaEnd(dynaEnd)
	}

	var entries []EntryRange
	if text != nil {
		entries = append(entries, EntryRange{KindText, text, relaText})
	}
	if rodata != nil {
		entries = append(entries, EntryRange{KindRodata, rodata, relaRodata})
	}
	if data != nil {
		entries = append(entries, EntryRange{KindData, data, relaData})
	}
	if bss != nil {
		entries = append(entries, EntryRange{KindBss, bss, nil})
	}

	return &Result{Entries: entries, TextEnd: textEnd, DataEnd: dataEnd, DynaEnd: dynaEnd}, nil
}

func alignSection(addr uint32, s *rplfmt.Section) uint32 {
	align := s.AddrAlign
	if align == 0 {
		align = 1
	}
	return binutil.Align(addr, align)
}

func endOf(init uint32, secs ...*rplfmt.Section) uint32 {
	end := init
	for _, s := range secs {
		if s == nil {
			continue
		}
		if e := s.Addr + s.Size; e > end {
			end = e
		}
	}
	return end
}

// relinkRelocations sets a rela section's sh_link/sh_info to point at the
// just-spliced symtab/target-section indices, and rebases any relocation
// offset the linker emitted section-relative (below the section's final
// address) onto the section's spliced absolute address.
func relinkRelocations(base *rplfmt.File, target, rela *rplfmt.Section, symtabIndex int) {
	if rela == nil || target == nil {
		return
	}
	if symtabIndex != -1 {
		rela.Link = uint32(symtabIndex)
	}
	rela.Info = uint32(base.Index(target))
	for i := range rela.Relas {
		if rela.Relas[i].Offset < target.Addr {
			rela.Relas[i].Offset += target.Addr
		}
	}
}

// ExtractTextSymbols scans obj's .symtab for symbols bound to text (local
// binding, st_info>>4==1, st_other==0, st_shndx pointing at the .text
// section) and merges their resolved st_value into symbols, keyed by the
// .strtab name. A name already present must match its stored value.
func ExtractTextSymbols(obj *rplfmt.File, symtab, strtab, text *rplfmt.Section, symbols map[string]uint32) error {
	if symtab == nil || strtab == nil {
		return nil
	}
	const entSize = 0x10
	if len(symtab.Bytes)%entSize != 0 {
		return fmt.Errorf("splice: .symtab size %d is not a multiple of %d", len(symtab.Bytes), entSize)
	}

	for pos := 0; pos < len(symtab.Bytes); pos += entSize {
		e := symtab.Bytes[pos : pos+entSize]
		stName := binary.BigEndian.Uint32(e[0:4])
		stValue := binary.BigEndian.Uint32(e[4:8])
		stInfo := e[12]
		stOther := e[13]
		stShndx := binary.BigEndian.Uint16(e[14:16])

		if stName == 0 || stInfo>>4 != 1 || stOther != 0 {
			continue
		}
		if int(stShndx) <= 0 || int(stShndx) >= len(obj.Sections) || obj.Sections[stShndx] != text {
			continue
		}

		name := cStringFromStrtab(strtab.Bytes, stName)
		if existing, ok := symbols[name]; ok {
			if existing != stValue {
				return fmt.Errorf("splice: symbol %q resolved to conflicting values 0x%08X and 0x%08X", name, existing, stValue)
			}
			continue
		}
		symbols[name] = stValue
	}
	return nil
}

func cStringFromStrtab(tab []byte, idx uint32) string {
	if int(idx) >= len(tab) {
		return ""
	}
	end := idx
	for end < uint32(len(tab)) && tab[end] != 0 {
		end++
	}
	return string(tab[idx:end])
}
