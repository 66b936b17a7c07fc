// Package model holds small validation types shared by project, module,
// target, and hook decoding: the presence/value tri-state used throughout
// the original tool's object readers, and the error-reporting callback
// threaded through every decode path.
package model

import "strings"

// Presence distinguishes a YAML key that is missing from the decoded
// object, present with an explicit null, or present with a value. This
// replaces the original tool's 0x01020304 sentinel integer, which was
// smuggled through a string-typed return to mean "key absent" without a
// real sum type.
type Presence int

const (
	Missing Presence = iota
	ExplicitNull
	Present
)

// OptionalString is the result of reading an optional string field.
type OptionalString struct {
	Presence Presence
	Value    string
}

// Str builds a present value.
func Str(s string) OptionalString { return OptionalString{Presence: Present, Value: s} }

// Null builds an explicit-null result.
func Null() OptionalString { return OptionalString{Presence: ExplicitNull} }

// NotSet builds a missing-key result.
func NotSet() OptionalString { return OptionalString{Presence: Missing} }

// IsPresent reports whether the field carried a concrete string value.
func (o OptionalString) IsPresent() bool { return o.Presence == Present }

// Reporter is the Go analogue of the original's `error=print` callback
// threaded through every validation/resolution path. A nil Reporter
// discards reports.
type Reporter func(error)

// Report invokes r if non-nil.
func (r Reporter) Report(err error) {
	if r != nil && err != nil {
		r(err)
	}
}

// filenameForbidden matches any rune outside [A-Za-z0-9_\-.,+()].
func filenameForbidden(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return false
	case r == '_' || r == '-' || r == '.' || r == ',' || r == '+' || r == '(' || r == ')':
		return false
	default:
		return true
	}
}

// IsValidFilename reports whether s is safe to use as a bare filename: it
// must be non-empty, and if it contains a character outside the allowed
// set it is rejected unless it starts with '-' or ends with '.' (the
// leading-hyphen/trailing-dot exemption the original tool's regex check
// carries verbatim).
func IsValidFilename(s string) bool {
	if s == "" {
		return false
	}
	hasForbidden := strings.ContainsFunc(s, filenameForbidden)
	if !hasForbidden {
		return true
	}
	return strings.HasPrefix(s, "-") || strings.HasSuffix(s, ".")
}

// IsIdentifier reports whether s is a valid bare identifier (the Go
// analogue of Python's str.isidentifier, used to validate Add/Defines and
// Remove/Defines keys).
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
