package addrmap

// Resolver is one platform's address table, optionally chained onto a
// base resolver. Resolution order is base-first: the derived platform's
// ranges are matched against the address the base platform already
// resolved, not the raw input.
type Resolver struct {
	Name  string
	Type  PlatformType
	Base  *Resolver // nil for a root table
	Table []Entry

	// TextAddr/DataAddr anchor a CafeLoader resolver; unused otherwise.
	TextAddr *uint32
	DataAddr *uint32

	// OnTolerantMiss, if set, is called when a tolerant (Base/Emulator)
	// resolver passes an unresolved address through unchanged.
	OnTolerantMiss func(address uint32, platform string)
}

// Resolve walks the chain (base first) and applies the first matching
// range in each table. A CafeLoader resolver raises OutOfRangeError on a
// miss; Base and Emulator resolvers pass the address through unchanged.
func (r *Resolver) Resolve(addr uint32) (uint32, error) {
	in := addr
	if r.Base != nil {
		resolved, err := r.Base.Resolve(addr)
		if err != nil {
			return 0, err
		}
		in = resolved
	}

	for _, e := range r.Table {
		if e.Range.Contains(in) {
			return uint32(int64(in) + int64(e.Offset)), nil
		}
	}

	if r.Type == CafeLoader {
		return 0, &OutOfRangeError{Address: in, Platform: r.Name}
	}
	if r.OnTolerantMiss != nil {
		r.OnTolerantMiss(in, r.Name)
	}
	return in, nil
}

// Add appends one range/offset row in declaration order.
func (r *Resolver) Add(rng Range, offset int32) {
	r.Table = append(r.Table, Entry{Range: rng, Offset: offset})
}
