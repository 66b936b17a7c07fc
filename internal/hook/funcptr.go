package hook

import (
	"fmt"
	"strings"

	"github.com/zboralski/clpc/internal/binutil"
)

// FuncPtrHook emits the resolved absolute address of a symbol.
type FuncPtrHook struct {
	Base
	Func string

	cache map[uint32][]byte
}

// Bytes is cached by the resolved target address alone; addr is unused
// since a function pointer's value never depends on where it is written.
func (h *FuncPtrHook) Bytes(_ uint32, symbols map[string]uint32) ([]byte, error) {
	target, ok := symbols[h.Func]
	if !ok {
		trimmed := strings.TrimSpace(h.Func)
		target, ok = symbols[trimmed]
		if !ok {
			return nil, fmt.Errorf("hook: function pointer symbol not found: %q", h.Func)
		}
	}

	if h.cache == nil {
		h.cache = make(map[uint32][]byte)
	} else if b, ok := h.cache[target]; ok {
		return b, nil
	}

	buf := binutil.PutU32(target)
	h.cache[target] = buf
	return buf, nil
}
