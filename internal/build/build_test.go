package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zboralski/clpc/internal/hook"
	"github.com/zboralski/clpc/internal/module"
	"github.com/zboralski/clpc/internal/project"
	"github.com/zboralski/clpc/internal/rplfmt"
)

func TestMaxU32(t *testing.T) {
	if got := maxU32(1, 9, 3); got != 9 {
		t.Errorf("expected 9, got %d", got)
	}
	if got := maxU32(); got != 0 {
		t.Errorf("expected 0 for no args, got %d", got)
	}
}

func TestResolveAlignmentsTakesMaximumAcrossModules(t *testing.T) {
	proj, err := project.New(t.TempDir(), project.Collaborators{})
	if err != nil {
		t.Fatalf("project.New: %v", err)
	}
	proj.SectionAlign = map[string]uint32{"text": 4, "rodata": 4, "data": 4, "bss": 4}

	modules := map[string]*module.Module{
		"a": {SectionAlign: map[string]uint32{"text": 8}},
		"b": {SectionAlign: map[string]uint32{"rodata": 16, "data": 32, "bss": 64}},
	}

	text, rodata, data, bss := resolveAlignments(proj, modules)
	if text != 8 {
		t.Errorf("expected text align 8, got %d", text)
	}
	if rodata != 16 {
		t.Errorf("expected rodata align 16, got %d", rodata)
	}
	if data != 32 {
		t.Errorf("expected data align 32, got %d", data)
	}
	if bss != 64 {
		t.Errorf("expected bss align 64, got %d", bss)
	}
}

func TestSectionClassEndFindsHighestEndInRange(t *testing.T) {
	f := &rplfmt.File{Sections: []*rplfmt.Section{
		{Addr: 0x02000000, Size: 0x100},
		{Addr: 0x02000200, Size: 0x50},
		{Addr: 0x10000000, Size: 0x10}, // out of the text range
	}}

	end, err := sectionClassEnd(f, rplfmt.TextRangeLo, rplfmt.TextRangeHi)
	if err != nil {
		t.Fatalf("sectionClassEnd: %v", err)
	}
	if end != 0x02000250 {
		t.Errorf("expected end 0x02000250, got 0x%08X", end)
	}
}

func TestSectionClassEndErrorsWhenRangeEmpty(t *testing.T) {
	f := &rplfmt.File{Sections: []*rplfmt.Section{{Addr: 0x10000000, Size: 4}}}
	if _, err := sectionClassEnd(f, rplfmt.TextRangeLo, rplfmt.TextRangeHi); err == nil {
		t.Error("expected error when no section falls in range")
	}
}

func TestFlattenHooksOrdersByModulePath(t *testing.T) {
	h1 := &hook.PatchHook{Base: hook.Base{Address: []uint32{1}}, Type: hook.Raw, RawHex: "00"}
	h2 := &hook.PatchHook{Base: hook.Base{Address: []uint32{2}}, Type: hook.Raw, RawHex: "01"}

	modules := map[string]*module.Module{
		"/z_module.yaml": {Hooks: []hook.Hook{h2}},
		"/a_module.yaml": {Hooks: []hook.Hook{h1}},
	}

	got := flattenHooks(modules)
	if len(got) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(got))
	}
	if got[0] != hook.Hook(h1) || got[1] != hook.Hook(h2) {
		t.Error("expected hooks ordered by sorted module path (a_module before z_module)")
	}
}

func newMinimalObj() *rplfmt.File {
	h := rplfmt.NewHeader()
	null := &rplfmt.Section{Name: ""}
	rela := &rplfmt.Section{
		Name: ".rela.text",
		Type: rplfmt.SHTRela,
		Relas: []rplfmt.RelaEntry{
			{Offset: 0, Info: 0x10B, Addend: 0},   // type 0x0B, strip
			{Offset: 4, Info: 0x101, Addend: 0},   // type 0x01, keep
			{Offset: 8, Info: 0x20B, Addend: 0},   // type 0x0B, strip
		},
	}
	shstrtab := &rplfmt.Section{Name: ".shstrtab", Type: rplfmt.SHTStrTab, Bytes: []byte("\x00")}
	return &rplfmt.File{Header: h, Sections: []*rplfmt.Section{null, rela, shstrtab}, ShStrNdx: 2}
}

func TestStripType11RelocationsRemovesOnlyMarkedEntries(t *testing.T) {
	f := newMinimalObj()
	buf, err := f.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	path := filepath.Join(t.TempDir(), "obj.o")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := stripType11Relocations(path); err != nil {
		t.Fatalf("stripType11Relocations: %v", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got, err := rplfmt.Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	rela := got.SectionsByType(rplfmt.SHTRela)
	if len(rela) != 1 {
		t.Fatalf("expected one rela section, got %d", len(rela))
	}
	if len(rela[0].Relas) != 1 {
		t.Fatalf("expected 1 surviving relocation, got %d", len(rela[0].Relas))
	}
	if rela[0].Relas[0].Offset != 4 || rela[0].Relas[0].Type() != 0x01 {
		t.Errorf("expected the type-0x01 relocation at offset 4 to survive, got %+v", rela[0].Relas[0])
	}
}
