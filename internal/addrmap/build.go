package addrmap

import "fmt"

// RangeSpec is one already-tokenised "LO-HI : ±OFF;" entry.
type RangeSpec struct {
	Lo, Hi uint32
	Offset int32
}

// PlatformSpec is one already-tokenised ".platform" directive plus the
// range entries declared under it.
type PlatformSpec struct {
	Name     string // declared platform identifier, e.g. "Emulator"
	Kind     PlatformType
	KindWord string // raw CafeLoader kind spelling, validated against cafeLoaderIdentifiers
	Extends  string // "" means extend the implicit root Base table
	Ranges   []RangeSpec
	TextAddr *uint32
	DataAddr *uint32
}

// Document is the fully tokenised address-conversion map: an implicit
// root Base table (ranges declared before any .platform directive) plus
// zero or more named platforms.
type Document struct {
	BaseRanges []RangeSpec
	Platforms  []PlatformSpec

	// TextAddr/DataAddr hold an optional file-level preamble pair (declared
	// before any .platform directive). No resolver consumes these directly;
	// they exist so a preamble that only sets the anchors once, ahead of
	// per-platform overrides, round-trips instead of being silently
	// dropped by the parser.
	TextAddr *uint32
	DataAddr *uint32
}

// Options configures resolver construction.
type Options struct {
	// LoaderReservation is added to a CafeLoader resolver's DataAddr
	// anchor to reserve loader-injected-symbol space. Spec default is 4;
	// kept configurable per the recorded open question.
	LoaderReservation uint32
}

// DefaultOptions returns the spec-mandated defaults.
func DefaultOptions() Options {
	return Options{LoaderReservation: 4}
}

// Build assembles a name -> *Resolver table from a Document, applying the
// construction rules: a platform may be declared at most once; extends
// must name an already-declared platform; CafeLoader requires its kind
// word to be one of {cfl, cafeloader, CafeLoader} and concrete TextAddr/
// DataAddr anchors.
func Build(doc Document, opts Options) (map[string]*Resolver, error) {
	root := &Resolver{Name: "Base", Type: Base}
	for _, rs := range doc.BaseRanges {
		root.Add(Range{Lo: rs.Lo, Hi: rs.Hi}, rs.Offset)
	}

	resolvers := map[string]*Resolver{"Base": root}

	for _, p := range doc.Platforms {
		if _, exists := resolvers[p.Name]; exists {
			return nil, fmt.Errorf("addrmap: platform %q declared more than once", p.Name)
		}

		base := root
		if p.Extends != "" {
			b, ok := resolvers[p.Extends]
			if !ok {
				return nil, fmt.Errorf("addrmap: platform %q extends undeclared platform %q", p.Name, p.Extends)
			}
			base = b
		}

		if p.Kind == CafeLoader && !cafeLoaderIdentifiers[p.KindWord] {
			return nil, fmt.Errorf("addrmap: platform %q has invalid CafeLoader kind word %q", p.Name, p.KindWord)
		}

		r := &Resolver{Name: p.Name, Type: p.Kind, Base: base}
		for _, rs := range p.Ranges {
			r.Add(Range{Lo: rs.Lo, Hi: rs.Hi}, rs.Offset)
		}

		if p.Kind == CafeLoader {
			if p.TextAddr == nil || p.DataAddr == nil {
				return nil, fmt.Errorf("addrmap: CafeLoader platform %q requires concrete TextAddr and DataAddr anchors", p.Name)
			}
			text := *p.TextAddr
			data := *p.DataAddr + opts.LoaderReservation
			r.TextAddr = &text
			r.DataAddr = &data
		} else {
			r.TextAddr = p.TextAddr
			r.DataAddr = p.DataAddr
		}

		resolvers[p.Name] = r
	}

	return resolvers, nil
}
