// Package hook implements the tagged-variant hook model: typed, addressed
// patches that get materialised into raw bytes and overlaid onto a
// section. Each variant has exactly one method, Bytes, per the preferred
// shape over an inheritance hierarchy.
package hook

import "fmt"

// Encoding selects the charset used to encode String/WChar/WString patch
// data.
type Encoding int

const (
	ShiftJIS Encoding = iota + 1
	UTF8
	UCS2
)

// ParseEncoding accepts the case/punctuation variants the original tool's
// YAML front-end allowed.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "Shift-JIS", "ShiftJIS", "shift-jis", "shiftjis":
		return ShiftJIS, nil
	case "UTF-8", "UTF8", "utf-8", "utf8":
		return UTF8, nil
	case "UCS-2", "UCS2", "ucs-2", "ucs2":
		return UCS2, nil
	}
	return 0, fmt.Errorf("hook: invalid encoding string %q", s)
}

// Type is the patch payload's scalar kind. Array is a flag bit, combined
// with one of the base kinds below (e.g. U32|Array for "u32[]").
type Type uint16

const (
	Raw Type = 0

	U8  Type = 1 << 0
	U16 Type = 1 << 1
	U32 Type = 1 << 2
	U64 Type = 1 << 3

	S8  Type = 1 << 4
	S16 Type = 1 << 5
	S32 Type = 1 << 6
	S64 Type = 1 << 7

	F32 Type = 1 << 8
	F64 Type = 1 << 9

	Char   Type = 1 << 10
	String Type = 1 << 11

	WChar   Type = 1 << 12
	WString Type = 1 << 13

	Array Type = 1 << 14
)

// Base strips the Array flag.
func (t Type) Base() Type { return t &^ Array }

// IsArray reports whether the Array flag is set.
func (t Type) IsArray() bool { return t&Array != 0 }

// Alignment returns the required address/element alignment for non-Raw
// types. Raw has no alignment requirement (the hook is a byte blob).
func (t Type) Alignment() uint32 {
	switch t.Base() {
	case U8, S8, Char:
		return 1
	case U16, S16, WChar:
		return 2
	case U32, S32, F32, String, WString:
		return 4
	case U64, S64, F64:
		return 8
	}
	return 1
}

// AllowedEncodings lists the encodings valid for this base type; empty for
// types that carry no text.
func (t Type) AllowedEncodings() []Encoding {
	switch t.Base() {
	case String:
		return []Encoding{ShiftJIS, UTF8}
	case WChar, WString:
		return []Encoding{ShiftJIS, UCS2}
	}
	return nil
}

// DefaultEncoding is the encoding implied when none is specified.
func (t Type) DefaultEncoding() (Encoding, bool) {
	switch t.Base() {
	case String, WChar, WString:
		return ShiftJIS, true
	}
	return 0, false
}

var typeNames = map[string]Type{
	"raw": Raw,

	"u8": U8, "uchar": U8,
	"u16": U16, "ushort": U16,
	"u32": U32, "uint": U32,
	"u64": U64, "ulonglong": U64,

	"s8": S8, "schar": S8,
	"s16": S16, "short": S16,
	"s32": S32, "int": S32,
	"s64": S64, "longlong": S64,

	"f32": F32, "float": F32,
	"f64": F64, "double": F64,

	"char":   Char,
	"string": String,

	"wchar":   WChar,
	"wstring": WString,
}

// ParseType accepts the original tool's type strings, including the
// "<type>[]" array forms.
func ParseType(s string) (Type, error) {
	if t, ok := typeNames[s]; ok {
		return t, nil
	}
	if len(s) > 2 && s[len(s)-2:] == "[]" {
		if t, ok := typeNames[s[:len(s)-2]]; ok && t != Raw {
			return t | Array, nil
		}
	}
	return 0, fmt.Errorf("hook: invalid type string %q", s)
}
