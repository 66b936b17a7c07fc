package module

import (
	"fmt"
	"unicode/utf16"

	"golang.org/x/text/encoding/japanese"

	"github.com/zboralski/clpc/internal/hook"
)

// coercePatchValues converts the decoded YAML element values into the Go
// native types hook.PatchHook.Bytes expects for the given base type,
// applying charset encoding for the string-family types.
func coercePatchValues(base hook.Type, elements []any, enc hook.Encoding, fieldName string) ([]any, error) {
	switch base {
	case hook.U8, hook.U16, hook.U32, hook.U64:
		return coerceUnsigned(base, elements, fieldName)
	case hook.S8, hook.S16, hook.S32, hook.S64:
		return coerceSigned(base, elements, fieldName)
	case hook.F32, hook.F64:
		return coerceFloat(base, elements, fieldName)
	case hook.Char:
		return coerceChar(elements, fieldName)
	case hook.String:
		return encodeStringElements(elements, enc, fieldName)
	case hook.WChar:
		return encodeWCharElements(elements, enc, fieldName)
	case hook.WString:
		return encodeWStringElements(elements, enc, fieldName)
	}
	return nil, fmt.Errorf("module: in %s, unsupported patch type", fieldName)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

func coerceUnsigned(base hook.Type, elements []any, fieldName string) ([]any, error) {
	var lo, hi int64
	switch base {
	case hook.U8:
		hi = 0xFF
	case hook.U16:
		hi = 0xFFFF
	case hook.U32:
		hi = 0xFFFFFFFF
	case hook.U64:
		hi = 1<<63 - 1 // practical ceiling for the int64 carrier
	}
	out := make([]any, len(elements))
	for i, v := range elements {
		n, ok := asInt64(v)
		if !ok || n < lo || n > hi {
			return nil, fmt.Errorf("module: in %s, expected data to be an integer in range [%d,%d], got %v", fieldName, lo, hi, v)
		}
		switch base {
		case hook.U8:
			out[i] = uint8(n)
		case hook.U16:
			out[i] = uint16(n)
		case hook.U32:
			out[i] = uint32(n)
		case hook.U64:
			out[i] = uint64(n)
		}
	}
	return out, nil
}

func coerceSigned(base hook.Type, elements []any, fieldName string) ([]any, error) {
	var lo, hi int64
	switch base {
	case hook.S8:
		lo, hi = -0x80, 0x7F
	case hook.S16:
		lo, hi = -0x8000, 0x7FFF
	case hook.S32:
		lo, hi = -0x80000000, 0x7FFFFFFF
	case hook.S64:
		lo, hi = -1<<63, 1<<63-1
	}
	out := make([]any, len(elements))
	for i, v := range elements {
		n, ok := asInt64(v)
		if !ok || n < lo || n > hi {
			return nil, fmt.Errorf("module: in %s, expected data to be an integer in range [%d,%d], got %v", fieldName, lo, hi, v)
		}
		switch base {
		case hook.S8:
			out[i] = int8(n)
		case hook.S16:
			out[i] = int16(n)
		case hook.S32:
			out[i] = int32(n)
		case hook.S64:
			out[i] = n
		}
	}
	return out, nil
}

func coerceFloat(base hook.Type, elements []any, fieldName string) ([]any, error) {
	out := make([]any, len(elements))
	for i, v := range elements {
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case float32:
			f = float64(n)
		case int:
			f = float64(n)
		default:
			return nil, fmt.Errorf("module: in %s, expected data to be a floating-point number, got %v", fieldName, v)
		}
		if base == hook.F32 {
			out[i] = float32(f)
		} else {
			out[i] = f
		}
	}
	return out, nil
}

func coerceChar(elements []any, fieldName string) ([]any, error) {
	out := make([]any, len(elements))
	for i, v := range elements {
		s, ok := v.(string)
		if !ok || len(s) != 1 || s[0] > 0x7F {
			return nil, fmt.Errorf("module: in %s, expected data to be a single ASCII character, got %v", fieldName, v)
		}
		out[i] = s[0]
	}
	return out, nil
}

func charsetEncode(s string, enc hook.Encoding) ([]byte, error) {
	switch enc {
	case hook.UTF8:
		return []byte(s), nil
	case hook.ShiftJIS:
		b, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("shift-jis encode failed: %w", err)
		}
		return b, nil
	case hook.UCS2:
		units := utf16.Encode([]rune(s))
		buf := make([]byte, 0, len(units)*2)
		for _, u := range units {
			buf = append(buf, byte(u>>8), byte(u))
		}
		return buf, nil
	}
	return nil, fmt.Errorf("module: no charset selected")
}

func encodeStringElements(elements []any, enc hook.Encoding, fieldName string) ([]any, error) {
	out := make([]any, len(elements))
	for i, v := range elements {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("module: in %s, expected data to be a non-empty string, got %v", fieldName, v)
		}
		b, err := charsetEncode(s+"\x00", enc)
		if err != nil {
			return nil, fmt.Errorf("module: in %s, failed to encode string: %w", fieldName, err)
		}
		out[i] = b
	}
	return out, nil
}

func encodeWideChar(c rune, enc hook.Encoding) ([]byte, error) {
	b, err := charsetEncode(string(c), enc)
	if err != nil {
		return nil, err
	}
	if len(b) > 2 {
		return nil, fmt.Errorf("wide character encodes to more than 2 bytes")
	}
	padded := make([]byte, 2)
	copy(padded[2-len(b):], b)
	return padded, nil
}

func encodeWCharElements(elements []any, enc hook.Encoding, fieldName string) ([]any, error) {
	out := make([]any, len(elements))
	for i, v := range elements {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("module: in %s, expected data to be a non-empty string, got %v", fieldName, v)
		}
		r := []rune(s)
		if len(r) != 1 {
			return nil, fmt.Errorf("module: in %s, expected a single wide character, got %q", fieldName, s)
		}
		b, err := encodeWideChar(r[0], enc)
		if err != nil {
			return nil, fmt.Errorf("module: in %s, %w", fieldName, err)
		}
		out[i] = b
	}
	return out, nil
}

func encodeWStringElements(elements []any, enc hook.Encoding, fieldName string) ([]any, error) {
	out := make([]any, len(elements))
	for i, v := range elements {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("module: in %s, expected data to be a non-empty string, got %v", fieldName, v)
		}
		var buf []byte
		for _, c := range s + "\x00" {
			b, err := encodeWideChar(c, enc)
			if err != nil {
				return nil, fmt.Errorf("module: in %s, %w", fieldName, err)
			}
			buf = append(buf, b...)
		}
		out[i] = buf
	}
	return out, nil
}
