package addrmap

import "testing"

func u32(v uint32) *uint32 { return &v }

func TestResolveChainsThroughBase(t *testing.T) {
	doc := Document{
		BaseRanges: []RangeSpec{
			{Lo: 0x1000, Hi: 0x2000, Offset: 0x100},
		},
		Platforms: []PlatformSpec{
			{
				Name: "Emulator", Kind: Emulator,
				Ranges: []RangeSpec{{Lo: 0x1100, Hi: 0x1200, Offset: 0x10}},
			},
		},
	}
	resolvers, err := Build(doc, DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	emu := resolvers["Emulator"]

	// 0x1050 matches the base range (+0x100 -> 0x1150), which then matches
	// the derived range (+0x10 -> 0x1160). Chaining is base-resolved, not
	// raw-input.
	got, err := emu.Resolve(0x1050)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != 0x1160 {
		t.Errorf("Resolve(0x1050) = %#x, want 0x1160", got)
	}
}

func TestCafeLoaderStrictOnMiss(t *testing.T) {
	doc := Document{
		Platforms: []PlatformSpec{
			{
				Name: "CafeLoader", Kind: CafeLoader, KindWord: "cfl",
				TextAddr: u32(0x02000000), DataAddr: u32(0x10000000),
			},
		},
	}
	resolvers, err := Build(doc, DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := resolvers["CafeLoader"].Resolve(0xDEADBEEF); err == nil {
		t.Error("expected out-of-range error for CafeLoader miss")
	}
}

func TestEmulatorTolerantOnMiss(t *testing.T) {
	doc := Document{
		Platforms: []PlatformSpec{
			{Name: "Emulator", Kind: Emulator},
		},
	}
	resolvers, err := Build(doc, DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := resolvers["Emulator"].Resolve(0xDEADBEEF)
	if err != nil {
		t.Fatalf("Resolve should be tolerant on miss, got error: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Errorf("tolerant miss should pass address through unchanged, got %#x", got)
	}
}

func TestBuildRejectsDuplicatePlatform(t *testing.T) {
	doc := Document{
		Platforms: []PlatformSpec{
			{Name: "Emulator", Kind: Emulator},
			{Name: "Emulator", Kind: Emulator},
		},
	}
	if _, err := Build(doc, DefaultOptions()); err == nil {
		t.Error("expected error for duplicate platform declaration")
	}
}

func TestBuildRejectsUnknownExtends(t *testing.T) {
	doc := Document{
		Platforms: []PlatformSpec{
			{Name: "Emulator", Kind: Emulator, Extends: "Nonexistent"},
		},
	}
	if _, err := Build(doc, DefaultOptions()); err == nil {
		t.Error("expected error for extends referencing undeclared platform")
	}
}

func TestBuildRejectsCafeLoaderBadKindWord(t *testing.T) {
	doc := Document{
		Platforms: []PlatformSpec{
			{
				Name: "CafeLoader", Kind: CafeLoader, KindWord: "bogus",
				TextAddr: u32(0x02000000), DataAddr: u32(0x10000000),
			},
		},
	}
	if _, err := Build(doc, DefaultOptions()); err == nil {
		t.Error("expected error for invalid CafeLoader kind word")
	}
}

func TestBuildRejectsCafeLoaderWithoutAnchors(t *testing.T) {
	doc := Document{
		Platforms: []PlatformSpec{
			{Name: "CafeLoader", Kind: CafeLoader, KindWord: "cfl"},
		},
	}
	if _, err := Build(doc, DefaultOptions()); err == nil {
		t.Error("expected error for CafeLoader platform missing TextAddr/DataAddr")
	}
}

func TestCafeLoaderDataAddrReservation(t *testing.T) {
	doc := Document{
		Platforms: []PlatformSpec{
			{
				Name: "CafeLoader", Kind: CafeLoader, KindWord: "cfl",
				TextAddr: u32(0x02000000), DataAddr: u32(0x10000000),
			},
		},
	}
	resolvers, err := Build(doc, Options{LoaderReservation: 4})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := *resolvers["CafeLoader"].DataAddr; got != 0x10000004 {
		t.Errorf("DataAddr = %#x, want 0x10000004", got)
	}
}
