package hook

import (
	"bytes"
	"encoding/binary"
	"testing"

	"golang.org/x/arch/ppc64/ppc64asm"
)

func TestNOPHook(t *testing.T) {
	h := &NOPHook{Count: 3}
	got, err := h.Bytes(0, nil)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x60, 0x00, 0x00, 0x00, 0x60, 0x00, 0x00, 0x00, 0x60, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestNOPHookRejectsZeroCount(t *testing.T) {
	h := &NOPHook{Count: 0}
	if _, err := h.Bytes(0, nil); err == nil {
		t.Error("expected error for count=0")
	}
}

func TestReturnHook(t *testing.T) {
	h := &ReturnHook{}
	got, err := h.Bytes(0, nil)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x4E, 0x80, 0x00, 0x20}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
	if inst, err := ppc64asm.Decode(got, binary.BigEndian); err != nil {
		t.Errorf("blr word did not disassemble: %v", err)
	} else if inst.Op != ppc64asm.BCLR {
		t.Errorf("blr word decoded as %v, want BCLR", inst.Op)
	}
}

func TestBranchHookLink(t *testing.T) {
	h := &BranchHook{Kind: BranchLink, Func: "main"}
	symbols := map[string]uint32{"main": 0x02100100}
	got, err := h.Bytes(0x02100000, symbols)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x48, 0x00, 0x01, 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestBranchHookDisassembles(t *testing.T) {
	h := &BranchHook{Kind: Branch, Func: "target"}
	symbols := map[string]uint32{"target": 0x02100200}
	got, err := h.Bytes(0x02100000, symbols)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	inst, err := ppc64asm.Decode(got, binary.BigEndian)
	if err != nil {
		t.Fatalf("branch word did not disassemble: %v", err)
	}
	if inst.Op != ppc64asm.B {
		t.Errorf("decoded op = %v, want B", inst.Op)
	}
}

func TestBranchHookCachesPerAddressAndTarget(t *testing.T) {
	h := &BranchHook{Kind: Branch, Func: "f"}
	symbols := map[string]uint32{"f": 0x02100100}
	a, _ := h.Bytes(0x02100000, symbols)
	b, _ := h.Bytes(0x02100000, symbols)
	if &a[0] == nil || !bytes.Equal(a, b) {
		t.Errorf("repeated calls with same (addr,target) should be deterministic")
	}
	c, err := h.Bytes(0x02100004, symbols)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Errorf("different patch address should change the encoded offset")
	}
}

func TestBranchHookUnknownSymbol(t *testing.T) {
	h := &BranchHook{Kind: Branch, Func: "missing"}
	if _, err := h.Bytes(0, map[string]uint32{}); err == nil {
		t.Error("expected error for unresolved symbol")
	}
}

func TestFuncPtrHook(t *testing.T) {
	h := &FuncPtrHook{Func: "g"}
	symbols := map[string]uint32{"g": 0x10001000}
	got, err := h.Bytes(0, symbols)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x10, 0x00, 0x10, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestPatchHookRaw(t *testing.T) {
	h := &PatchHook{Type: Raw, RawHex: "11 22 33 44"}
	got, err := h.Bytes(0, nil)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x11, 0x22, 0x33, 0x44}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestPatchHookRawOddLengthFails(t *testing.T) {
	h := &PatchHook{Type: Raw, RawHex: "123"}
	if _, err := h.Bytes(0, nil); err == nil {
		t.Error("expected error for odd-length hex string")
	}
}

func TestPatchHookU32Array(t *testing.T) {
	h := &PatchHook{
		Type: U32 | Array,
		Data: []any{uint32(0x11223344), uint32(0x55667788)},
	}
	got, err := h.Bytes(0, nil)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestPatchHookWStringUCS2(t *testing.T) {
	// "A" encoded UCS-2BE is 0x0041; trailing wide NUL is 0x0000.
	h := &PatchHook{
		Type:     WString | Array,
		Encoding: UCS2,
		Data:     []any{[]byte{0x00, 0x41, 0x00, 0x00}},
	}
	got, err := h.Bytes(0, nil)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x00, 0x41, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestParseTypeArraySuffix(t *testing.T) {
	ty, err := ParseType("u32[]")
	if err != nil {
		t.Fatalf("ParseType: %v", err)
	}
	if ty.Base() != U32 || !ty.IsArray() {
		t.Errorf("got %#x, want U32|Array", uint16(ty))
	}
}

func TestTypeAlignment(t *testing.T) {
	cases := []struct {
		t    Type
		want uint32
	}{
		{U8, 1}, {U16, 2}, {U32, 4}, {U64, 8},
		{S8, 1}, {S16, 2}, {S32, 4}, {S64, 8},
		{F32, 4}, {F64, 8},
		{Char, 1}, {String, 4}, {WChar, 2}, {WString, 4},
	}
	for _, c := range cases {
		if got := c.t.Alignment(); got != c.want {
			t.Errorf("Type(%#x).Alignment() = %d, want %d", uint16(c.t), got, c.want)
		}
	}
}
