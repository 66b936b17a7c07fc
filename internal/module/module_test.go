package module

import (
	"bytes"
	"testing"

	"github.com/zboralski/clpc/internal/hook"
)

func TestDecodeHookNOP(t *testing.T) {
	h, err := DecodeHook(map[string]any{
		"type": "nop", "addr": 0x02100000, "count": 3,
	}, "Module \"m\"")
	if err != nil {
		t.Fatalf("DecodeHook: %v", err)
	}
	nop, ok := h.(*hook.NOPHook)
	if !ok {
		t.Fatalf("got %T, want *hook.NOPHook", h)
	}
	got, err := nop.Bytes(0, nil)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(got) != 12 {
		t.Errorf("expected 12 bytes for count=3, got %d", len(got))
	}
}

func TestDecodeHookUnknownType(t *testing.T) {
	if _, err := DecodeHook(map[string]any{"type": "bogus", "addr": 0}, "m"); err == nil {
		t.Error("expected error for unknown hook type")
	}
}

func TestDecodeHookRejectsUnrecognizedOption(t *testing.T) {
	_, err := DecodeHook(map[string]any{
		"type": "return", "addr": 0, "bogusOption": 1,
	}, "m")
	if err == nil {
		t.Error("expected error for unrecognized option")
	}
}

func TestDecodePatchHookU32Array(t *testing.T) {
	h, err := DecodeHook(map[string]any{
		"type": "patch", "addr": 0x10000000, "datatype": "u32[]",
		"data": []any{0x11223344, 0x55667788},
	}, "m")
	if err != nil {
		t.Fatalf("DecodeHook: %v", err)
	}
	got, err := h.Bytes(0x10000000, nil)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestDecodePatchHookMisalignedAddrFails(t *testing.T) {
	_, err := DecodeHook(map[string]any{
		"type": "patch", "addr": 0x10000002, "datatype": "u32",
		"data": 0x11223344,
	}, "m")
	if err == nil {
		t.Error("expected alignment error for u32 patch at odd-word address")
	}
}

func TestDecodePatchHookRaw(t *testing.T) {
	h, err := DecodeHook(map[string]any{
		"type": "patch", "addr": 0, "data": "DEADBEEF",
	}, "m")
	if err != nil {
		t.Fatalf("DecodeHook: %v", err)
	}
	got, err := h.Bytes(0, nil)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestDecodePatchHookWStringUCS2(t *testing.T) {
	h, err := DecodeHook(map[string]any{
		"type": "patch", "addr": 0x10000000, "datatype": "wstring",
		"data": "A", "encoding": "UCS-2",
	}, "m")
	if err != nil {
		t.Fatalf("DecodeHook: %v", err)
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

func TestDecodeBranchHook(t *testing.T) {
	h, err := DecodeHook(map[string]any{
		"type": "branch", "addr": 0x02100000, "instr": "bl", "func": "main",
	}, "m")
	if err != nil {
		t.Fatalf("DecodeHook: %v", err)
	}
	got, err := h.Bytes(0x02100000, map[string]uint32{"main": 0x02100100})
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x48, 0x00, 0x01, 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestDecodeAddressesList(t *testing.T) {
	addr, err := decodeAddresses(map[string]any{"addr": []any{1, 2, 3}}, "m")
	if err != nil {
		t.Fatalf("decodeAddresses: %v", err)
	}
	if len(addr) != 3 {
		t.Errorf("expected 3 addresses, got %d", len(addr))
	}
}
