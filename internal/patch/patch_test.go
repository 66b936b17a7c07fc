package patch

import (
	"testing"

	"github.com/zboralski/clpc/internal/hook"
	"github.com/zboralski/clpc/internal/rplfmt"
	"github.com/zboralski/clpc/internal/splice"
)

func rawHook(addr uint32, hexData string) hook.Hook {
	return &hook.PatchHook{
		Base:   hook.Base{Address: []uint32{addr}},
		Type:   hook.Raw,
		RawHex: hexData,
	}
}

func TestApplyEmulatorOverlaysBytesAndStripsRelocation(t *testing.T) {
	text := &rplfmt.Section{Addr: 0x02100000, Size: 8, Bytes: make([]byte, 8)}
	rela := &rplfmt.Section{Relas: []rplfmt.RelaEntry{{Offset: 0x02100002}}}
	entries := []splice.EntryRange{{Kind: splice.KindText, Section: text, Rela: rela}}

	h := rawHook(0x02100002, "AABB")
	var warnings []string
	err := ApplyEmulator([]hook.Hook{h}, nil, nil, entries, func(s string) { warnings = append(warnings, s) })
	if err != nil {
		t.Fatalf("ApplyEmulator: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}

	got := text.Bytes[2:4]
	if got[0] != 0xAA || got[1] != 0xBB {
		t.Errorf("expected patched bytes AABB at offset 2, got %x", got)
	}
	if len(rela.Relas) != 0 {
		t.Errorf("expected relocation inside patched range to be removed, got %v", rela.Relas)
	}
}

func TestApplyEmulatorSkipsUnknownRegion(t *testing.T) {
	var warnings []string
	h := rawHook(0xDEADBEEF, "AA")
	err := ApplyEmulator([]hook.Hook{h}, nil, nil, nil, func(s string) { warnings = append(warnings, s) })
	if err != nil {
		t.Fatalf("ApplyEmulator: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning for unknown region, got %v", warnings)
	}
}

func TestApplyEmulatorSkipsBss(t *testing.T) {
	bss := &rplfmt.Section{Addr: 0x10200000, Size: 4, Bytes: make([]byte, 4)}
	entries := []splice.EntryRange{{Kind: splice.KindBss, Section: bss}}

	var warnings []string
	h := rawHook(0x10200000, "AA")
	if err := ApplyEmulator([]hook.Hook{h}, nil, nil, entries, func(s string) { warnings = append(warnings, s) }); err != nil {
		t.Fatalf("ApplyEmulator: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected a .bss warning, got %v", warnings)
	}
}

func TestApplyConsoleRendersPatchTable(t *testing.T) {
	h := rawHook(0x02100000, "AABB")
	resolve := func(addr uint32) (uint32, error) { return addr + 0x10, nil }

	buf, err := ApplyConsole([]hook.Hook{h}, nil, resolve)
	if err != nil {
		t.Fatalf("ApplyConsole: %v", err)
	}

	want := []byte{0x00, 0x01, 0x00, 0x02, 0x02, 0x10, 0x00, 0x10, 0xAA, 0xBB}
	if len(buf) != len(want) {
		t.Fatalf("expected %d bytes, got %d: %x", len(want), len(buf), buf)
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d: expected %#x, got %#x (full: %x)", i, want[i], buf[i], buf)
		}
	}
}
