package hook

import (
	"fmt"

	"github.com/zboralski/clpc/internal/binutil"
)

// NOPWord is the PowerPC NOP instruction (ori r0,r0,0), big-endian.
const NOPWord = 0x60000000

// ReturnWord is the PowerPC blr instruction, big-endian.
const ReturnWord = 0x4E800020

// NOPHook emits Count copies of the NOP word.
type NOPHook struct {
	Base
	Count int // >= 1, default 1

	cache []byte
}

func (h *NOPHook) Bytes(uint32, map[string]uint32) ([]byte, error) {
	if h.Count < 1 {
		return nil, fmt.Errorf("hook: NOP count must be >= 1, got %d", h.Count)
	}
	if h.cache != nil {
		return h.cache, nil
	}
	buf := make([]byte, h.Count*4)
	word := binutil.PutU32(NOPWord)
	for i := 0; i < h.Count; i++ {
		copy(buf[i*4:], word)
	}
	h.cache = buf
	return buf, nil
}

// ReturnHook emits the single blr word.
type ReturnHook struct {
	Base
}

func (h *ReturnHook) Bytes(uint32, map[string]uint32) ([]byte, error) {
	return binutil.PutU32(ReturnWord), nil
}
