package hook

// Hook is the common interface over every patch variant. Bytes is called
// once per patch address the hook carries; address-independent variants
// (Patch, NOP, Return) ignore addr, while Branch uses it to compute a
// relative offset and FuncPtr ignores it in favour of the symbol lookup.
type Hook interface {
	// Addresses returns the one or more 32-bit patch addresses this hook
	// is anchored to.
	Addresses() []uint32

	// Bytes materialises the hook's patch bytes for one specific address.
	Bytes(addr uint32, symbols map[string]uint32) ([]byte, error)
}

// Base holds the address list shared by every hook variant.
type Base struct {
	Address []uint32
}

// Addresses implements Hook.
func (b Base) Addresses() []uint32 { return b.Address }
