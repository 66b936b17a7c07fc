package splice

import (
	"encoding/binary"
	"testing"

	"github.com/zboralski/clpc/internal/rplfmt"
)

func newFileInfo() *rplfmt.Section {
	b := make([]byte, 80)
	binary.BigEndian.PutUint32(b[0:4], rplfmt.FileInfoMagic)
	return &rplfmt.Section{Type: rplfmt.SHTRPLFileInfo, Bytes: b}
}

func newBaseFile() *rplfmt.File {
	text := &rplfmt.Section{Name: ".text", Type: rplfmt.SHTProgBits, Addr: 0x02000000, Size: 0x100, Flags: 0x6, Bytes: make([]byte, 0x100)}
	crcs := &rplfmt.Section{Name: "", Type: rplfmt.SHTRPLCRCs, Bytes: make([]byte, 8)}
	return &rplfmt.File{Sections: []*rplfmt.Section{text, crcs, newFileInfo()}}
}

func newLinkedObj() *rplfmt.File {
	text := &rplfmt.Section{Name: ".text", Type: rplfmt.SHTProgBits, Addr: 0x02100000, Size: 4, AddrAlign: 4, Bytes: []byte{0, 1, 2, 3}}
	rela := &rplfmt.Section{Name: ".rela.text", Type: rplfmt.SHTRela, Relas: []rplfmt.RelaEntry{{Offset: 0, Info: 0x100, Addend: 0}}}
	return &rplfmt.File{Sections: []*rplfmt.Section{text, rela}}
}

func TestSpliceAppendsTextBeforeTrailer(t *testing.T) {
	base := newBaseFile()
	obj := newLinkedObj()

	res, err := Splice(base, obj, 0xC0000010, 0, 0xC0000010)
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}

	n := len(base.Sections)
	if base.Sections[n-1].Type != rplfmt.SHTRPLFileInfo || base.Sections[n-2].Type != rplfmt.SHTRPLCRCs {
		t.Fatalf("expected CRCS/FILEINFO to remain the last two sections")
	}
	// Order before the trailer is the spliced .text, then its .rela.text.
	if base.Sections[n-4].Name != "" || base.Sections[n-4].Type != rplfmt.SHTProgBits {
		t.Errorf("expected spliced .text section inserted before the trailer, got %+v", base.Sections[n-4])
	}

	if res.TextEnd != 0x02100000+4 {
		t.Errorf("expected TextEnd 0x%08X, got 0x%08X", 0x02100004, res.TextEnd)
	}
	if len(res.Entries) != 1 || res.Entries[0].Kind != KindText {
		t.Fatalf("expected one text entry range, got %+v", res.Entries)
	}
}

func TestSpliceRebasesRelocationOffset(t *testing.T) {
	base := newBaseFile()
	obj := newLinkedObj()
	// Splice zeroes the appended sections' names, so take them first.
	text := obj.Section(".text")
	rela := obj.Section(".rela.text")

	if _, err := Splice(base, obj, 0xC0000010, 0, 0xC0000010); err != nil {
		t.Fatalf("Splice: %v", err)
	}

	if rela.Relas[0].Offset != 0x02100000 {
		t.Errorf("expected relocation offset rebased to 0x02100000, got 0x%08X", rela.Relas[0].Offset)
	}
	if rela.Info != uint32(base.Index(text)) {
		t.Errorf("expected rela.Info to index the spliced .text section")
	}
}

func TestSpliceSetsTextEndInFileInfo(t *testing.T) {
	base := newBaseFile()
	obj := newLinkedObj()

	if _, err := Splice(base, obj, 0xC0000010, 0, 0xC0000010); err != nil {
		t.Fatalf("Splice: %v", err)
	}

	fi, err := base.FileInfoOf()
	if err != nil {
		t.Fatalf("FileInfoOf: %v", err)
	}
	if fi.TextEnd() != 0x02100004 {
		t.Errorf("expected FILEINFO text end 0x02100004, got 0x%08X", fi.TextEnd())
	}
}

func TestSpliceRejectsMissingText(t *testing.T) {
	base := newBaseFile()
	obj := &rplfmt.File{}

	if _, err := Splice(base, obj, 0, 0, 0); err == nil {
		t.Error("expected error when linked object has no .text section")
	}
}

func TestExtractTextSymbolsMergesLocalTextSymbols(t *testing.T) {
	text := &rplfmt.Section{Name: ".text"}
	strtab := &rplfmt.Section{Bytes: append([]byte{0}, []byte("my_func\x00")...)}

	sym := make([]byte, 0x10)
	binary.BigEndian.PutUint32(sym[0:4], 1) // st_name -> "my_func"
	binary.BigEndian.PutUint32(sym[4:8], 0x02100010)
	sym[12] = 1 << 4 // STB_LOCAL
	sym[13] = 0
	binary.BigEndian.PutUint16(sym[14:16], 1) // st_shndx -> obj.Sections[1] == text

	symtab := &rplfmt.Section{Bytes: sym}
	obj := &rplfmt.File{Sections: []*rplfmt.Section{{Name: ".dummy"}, text}}

	symbols := map[string]uint32{}
	if err := ExtractTextSymbols(obj, symtab, strtab, text, symbols); err != nil {
		t.Fatalf("ExtractTextSymbols: %v", err)
	}
	if symbols["my_func"] != 0x02100010 {
		t.Errorf("expected my_func = 0x02100010, got 0x%08X", symbols["my_func"])
	}
}

func TestExtractTextSymbolsRejectsConflictingValue(t *testing.T) {
	text := &rplfmt.Section{Name: ".text"}
	strtab := &rplfmt.Section{Bytes: append([]byte{0}, []byte("my_func\x00")...)}

	sym := make([]byte, 0x10)
	binary.BigEndian.PutUint32(sym[0:4], 1)
	binary.BigEndian.PutUint32(sym[4:8], 0x02100010)
	sym[12] = 1 << 4
	binary.BigEndian.PutUint16(sym[14:16], 1)

	symtab := &rplfmt.Section{Bytes: sym}
	obj := &rplfmt.File{Sections: []*rplfmt.Section{{Name: ".dummy"}, text}}

	symbols := map[string]uint32{"my_func": 0xDEADBEEF}
	if err := ExtractTextSymbols(obj, symtab, strtab, text, symbols); err == nil {
		t.Error("expected error on conflicting symbol value")
	}
}
