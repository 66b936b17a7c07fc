package hook

import (
	"fmt"
	"strings"

	"github.com/zboralski/clpc/internal/binutil"
)

// BranchKind distinguishes a plain branch from a branch-and-link.
type BranchKind int

const (
	Branch BranchKind = iota + 1
	BranchLink
)

// ParseBranchKind accepts the original tool's "b"/"bl" instruction strings.
func ParseBranchKind(s string) (BranchKind, error) {
	switch s {
	case "b":
		return Branch, nil
	case "bl":
		return BranchLink, nil
	}
	return 0, fmt.Errorf("hook: invalid instruction type string %q", s)
}

// BranchHook emits a PowerPC relative branch to a named symbol.
type BranchHook struct {
	Base
	Kind BranchKind
	Func string

	cache map[uint64][]byte
}

// Bytes computes offset = (target-addr) & 0x03FFFFFC and packs
// 0x48000000 | offset | (link ? 1 : 0) big-endian. Cached by
// (addr<<32)|target, since the same hook may be applied at several
// addresses with different resulting offsets.
func (h *BranchHook) Bytes(addr uint32, symbols map[string]uint32) ([]byte, error) {
	target, ok := symbols[h.Func]
	if !ok {
		trimmed := strings.TrimSpace(h.Func)
		target, ok = symbols[trimmed]
		if !ok {
			return nil, fmt.Errorf("hook: branch function symbol not found: %q", h.Func)
		}
	}

	key := uint64(addr)<<32 | uint64(target)
	if h.cache == nil {
		h.cache = make(map[uint64][]byte)
	} else if b, ok := h.cache[key]; ok {
		return b, nil
	}

	offset := (target - addr) & 0x03FFFFFC
	word := uint32(0x48000000) | offset
	if h.Kind == BranchLink {
		word |= 1
	}
	buf := binutil.PutU32(word)
	h.cache[key] = buf
	return buf, nil
}
