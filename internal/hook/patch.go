package hook

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zboralski/clpc/internal/binutil"
)

// PatchHook overlays a typed payload at one or more addresses. Non-Raw
// array elements are individually aligned and concatenated; Raw is a
// verbatim hex blob.
type PatchHook struct {
	Base
	Type     Type
	Encoding Encoding // zero value means "no encoding" (numeric/Char/Raw)
	RawHex   string   // used only when Type.Base() == Raw
	Data     []any    // element values; see Bytes for the expected Go type per Type

	cache []byte
}

// Bytes implements Hook. addr and symbols are unused; PatchHook's bytes
// never depend on where the patch lands.
func (h *PatchHook) Bytes(uint32, map[string]uint32) ([]byte, error) {
	if h.cache != nil {
		return h.cache, nil
	}

	if h.Type.Base() == Raw {
		clean := strings.Join(strings.Fields(h.RawHex), "")
		if len(clean) == 0 || len(clean)%2 != 0 {
			return nil, fmt.Errorf("hook: raw patch data must be a non-empty hex string of even length, got %q", h.RawHex)
		}
		buf, err := hex.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("hook: raw patch data is not valid hex: %w", err)
		}
		h.cache = buf
		return buf, nil
	}

	align := h.Type.Alignment()
	var buf []byte
	for _, v := range h.Data {
		pos := uint32(len(buf))
		padded := binutil.Align(pos, align)
		for uint32(len(buf)) < padded {
			buf = append(buf, 0)
		}
		enc, err := h.encodeElement(v)
		if err != nil {
			return nil, err
		}
		buf = append(buf, enc...)
	}
	h.cache = buf
	return buf, nil
}

func (h *PatchHook) encodeElement(v any) ([]byte, error) {
	switch h.Type.Base() {
	case U8:
		return []byte{v.(uint8)}, nil
	case U16:
		return binutil.PutU16(v.(uint16)), nil
	case U32:
		return binutil.PutU32(v.(uint32)), nil
	case U64:
		return binutil.PutU64(v.(uint64)), nil
	case S8:
		return []byte{byte(v.(int8))}, nil
	case S16:
		return binutil.PutU16(uint16(v.(int16))), nil
	case S32:
		return binutil.PutS32(v.(int32)), nil
	case S64:
		return binutil.PutS64(v.(int64)), nil
	case F32:
		return binutil.PutU32(f32bits(v.(float32))), nil
	case F64:
		return binutil.PutU64(f64bits(v.(float64))), nil
	case Char:
		b, ok := v.(byte)
		if !ok {
			return nil, fmt.Errorf("hook: char patch element must be a single ASCII byte")
		}
		return []byte{b}, nil
	case String, WChar, WString:
		// already charset-encoded (including trailing NUL/wide-NUL) by
		// the caller, mirroring the original's "Encode Strings" step.
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("hook: string-family patch element must be pre-encoded bytes")
		}
		return b, nil
	}
	return nil, fmt.Errorf("hook: unsupported patch type %#x", uint16(h.Type))
}
