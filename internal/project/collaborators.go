package project

import "github.com/zboralski/clpc/internal/addrmap"

// Collaborators bundles the parsers this core never reimplements: the
// address-conversion-map and symbol-map grammars are external collaborators
// consumed only through their resolved outputs, same as the YAML loader
// this package itself sits on top of.
type Collaborators struct {
	// ParseAddrMap tokenises one address-conversion-map file into a
	// Document ready for addrmap.Build.
	ParseAddrMap func(path string) (addrmap.Document, error)

	// ParseSymbolMap tokenises one symbol-map file into a name -> address
	// table, resolving aliases and rejecting forward references.
	ParseSymbolMap func(path string) (map[string]uint32, error)
}
