package target

import (
	"fmt"
	"strings"

	"github.com/zboralski/clpc/internal/model"
	"github.com/zboralski/clpc/internal/module"
)

// ResolveBases links every Target's BaseNames to Target pointers, folding
// multi-base Extends lists into a synthetic joined node, and fails on an
// unknown base name or an extension cycle.
func ResolveBases(byName map[string]*Target) error {
	resolved := map[string]bool{}
	visiting := map[string]bool{}

	var resolve func(t *Target) error
	resolve = func(t *Target) error {
		if resolved[t.Name] {
			return nil
		}
		if visiting[t.Name] {
			return fmt.Errorf("target: extension cycle detected at %q", t.Name)
		}
		visiting[t.Name] = true
		defer delete(visiting, t.Name)

		switch len(t.BaseNames) {
		case 0:
			t.Base = nil

		case 1:
			base, ok := byName[t.BaseNames[0]]
			if !ok {
				return fmt.Errorf("target: in Target %q, unknown base %q", t.Name, t.BaseNames[0])
			}
			if err := resolve(base); err != nil {
				return err
			}
			t.Base = base

		default:
			bases := make([]*Target, 0, len(t.BaseNames))
			for _, bn := range t.BaseNames {
				base, ok := byName[bn]
				if !ok {
					return fmt.Errorf("target: in Target %q, unknown base %q", t.Name, bn)
				}
				if err := resolve(base); err != nil {
					return err
				}
				bases = append(bases, base)
			}
			joined, err := Join(bases...)
			if err != nil {
				return fmt.Errorf("target: in Target %q, %w", t.Name, err)
			}
			t.Base = joined
		}

		resolved[t.Name] = true
		return nil
	}

	for _, t := range byName {
		if err := resolve(t); err != nil {
			return err
		}
	}
	return nil
}

// Join folds bases left-to-right into one synthetic, always-abstract
// Target: remove/add module and define sets are combined; an add that
// duplicates a prior add in the fold is an error; a later remove that
// matches an earlier add cancels that add rather than accumulating both.
// The joined name is "A | B | C"; the joined node inherits the first
// non-"@inherit" address map and base RPX name encountered, scanning the
// bases in fold order.
func Join(bases ...*Target) (*Target, error) {
	if len(bases) == 0 {
		return nil, fmt.Errorf("target: join requires at least one base")
	}

	names := make([]string, len(bases))
	for i, b := range bases {
		names[i] = b.Name
	}

	joined := &Target{
		Name:       strings.Join(names, " | "),
		IsAbstract: true,
		AddModules: map[string]*module.Module{},
	}

	addedModule := map[string]bool{}
	addedDefine := map[string]bool{}

	for _, b := range bases {
		for _, rm := range b.RemoveModules {
			if addedModule[rm] {
				delete(joined.AddModules, rm)
				addedModule[rm] = false
				continue
			}
			joined.RemoveModules = append(joined.RemoveModules, rm)
		}

		for name, mod := range b.AddModules {
			if addedModule[name] {
				return nil, fmt.Errorf("trying to add module from base %q that already exists in the join chain: %s", b.Name, name)
			}
			joined.AddModules[name] = mod
			addedModule[name] = true
		}

		for _, rd := range b.RemoveDefines {
			if addedDefine[rd] {
				joined.AddDefines = removeDefine(joined.AddDefines, rd)
				addedDefine[rd] = false
				continue
			}
			joined.RemoveDefines = append(joined.RemoveDefines, rd)
		}

		for _, def := range b.AddDefines {
			if addedDefine[def.Name] {
				return nil, fmt.Errorf("trying to add build option from base %q that already exists in the join chain: %s", b.Name, def.Name)
			}
			joined.AddDefines = append(joined.AddDefines, def)
			addedDefine[def.Name] = true
		}

		if b.AddrMapName.Value != sentinelInherit && (joined.AddrMapName == model.OptionalString{}) {
			joined.AddrMapName = b.AddrMapName
		}
		if b.BaseRpxName.Value != sentinelInherit && (joined.BaseRpxName == model.OptionalString{}) {
			joined.BaseRpxName = b.BaseRpxName
		}
	}

	if (joined.AddrMapName == model.OptionalString{}) {
		joined.AddrMapName = model.Str(sentinelInherit)
	}
	if (joined.BaseRpxName == model.OptionalString{}) {
		joined.BaseRpxName = model.Str(sentinelInherit)
	}

	return joined, nil
}

func removeDefine(defines []Define, name string) []Define {
	out := defines[:0]
	for _, d := range defines {
		if d.Name != name {
			out = append(out, d)
		}
	}
	return out
}

// ResolveAddrMapName climbs t's base chain to resolve the "@inherit"/"@self"
// sentinel into a concrete address-map name.
func ResolveAddrMapName(t *Target) (string, error) {
	return resolveSentinelName(t, func(x *Target) model.OptionalString { return x.AddrMapName }, "address map")
}

// ResolveBaseRpxName climbs t's base chain to resolve the "@inherit"/"@self"
// sentinel into a concrete base RPX filename.
func ResolveBaseRpxName(t *Target) (string, error) {
	return resolveSentinelName(t, func(x *Target) model.OptionalString { return x.BaseRpxName }, "base RPX name")
}

func resolveSentinelName(t *Target, field func(*Target) model.OptionalString, label string) (string, error) {
	for cur := t; cur != nil; cur = cur.Base {
		v := field(cur)
		switch v.Value {
		case sentinelSelf:
			return cur.Name, nil
		case sentinelInherit:
			continue
		default:
			if v.Presence == model.Present {
				return v.Value, nil
			}
		}
	}
	return "", fmt.Errorf("target: in Target %q, \"@inherit\" %s with no concrete ancestor", t.Name, label)
}

// ResolvedDefines folds RemoveDefines/AddDefines from proj down through t's
// base chain (base-first) into one final ordered define list.
func ResolvedDefines(t *Target, projectDefines []Define) ([]Define, error) {
	chain := baseChain(t)

	defines := append([]Define(nil), projectDefines...)
	for _, cur := range chain {
		defines = applyDefineDeltas(defines, cur)
	}
	return defines, nil
}

func applyDefineDeltas(defines []Define, t *Target) []Define {
	removeSet := make(map[string]bool, len(t.RemoveDefines))
	for _, name := range t.RemoveDefines {
		removeSet[name] = true
	}
	if len(removeSet) > 0 {
		kept := defines[:0]
		for _, d := range defines {
			if !removeSet[d.Name] {
				kept = append(kept, d)
			}
		}
		defines = kept
	}
	defines = append(defines, t.AddDefines...)
	return defines
}

// baseChain returns [..., t.Base.Base, t.Base, t]: root base first, t last,
// so folds apply in base-to-derived order.
func baseChain(t *Target) []*Target {
	var chain []*Target
	for cur := t; cur != nil; cur = cur.Base {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// ResolvedModules folds RemoveModules/AddModules from proj down through t's
// base chain into the final module set for a build.
func ResolvedModules(t *Target, projectModules map[string]*module.Module) (map[string]*module.Module, error) {
	chain := baseChain(t)

	modules := make(map[string]*module.Module, len(projectModules))
	for k, v := range projectModules {
		modules[k] = v
	}

	for _, cur := range chain {
		for _, name := range cur.RemoveModules {
			delete(modules, name)
		}
		for name, mod := range cur.AddModules {
			if _, exists := modules[name]; exists {
				return nil, fmt.Errorf("target: in Target %q, trying to add module from base %q that already exists in chain: %s", t.Name, cur.Name, name)
			}
			modules[name] = mod
		}
	}
	return modules, nil
}
