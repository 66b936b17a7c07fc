// Package target models a build Target: its own option deltas (which
// modules and build options it adds or removes), its address-map and base
// RPX name sentinels, and its unresolved base-name list. Resolution
// (linking base names to Targets, multi-base join, sentinel climbing) is
// in resolve.go.
package target

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/zboralski/clpc/internal/model"
	"github.com/zboralski/clpc/internal/module"
)

const (
	sentinelInherit = "@inherit"
	sentinelSelf    = "@self"
)

// Define is one build-option macro: a bare name, or a name with a
// processed string value (`nil` Value means "defined with no value").
type Define struct {
	Name  string
	Value *string
}

// Context is the subset of project-level services a target decode needs.
// Implemented by *project.Project.
type Context interface {
	ProcessString(fieldName, raw string) (string, error)
	ReadOptionalString(obj map[string]any, key, fieldName string) (model.OptionalString, error)
	ModulesBaseDir() string
	LoadModule(path string) (*module.Module, error)
}

// Target is one named build configuration before resolution.
type Target struct {
	Name       string
	IsAbstract bool

	BaseNames []string
	Base      *Target // set by ResolveBases; may be a synthetic joined node

	AddrMapName model.OptionalString
	BaseRpxName model.OptionalString

	RemoveModules []string
	AddModules    map[string]*module.Module

	RemoveDefines []string
	AddDefines    []Define
}

var availableOptions = map[string]bool{
	"Abstract":       true,
	"AddrMap":        true,
	"BaseRpx":        true,
	"Remove/Modules": true,
	"Add/Modules":    true,
	"Remove/Defines": true,
	"Add/Defines":    true,
	"Extends":        true,
}

// FromObj decodes one Target from a decoded YAML mapping.
func FromObj(obj map[string]any, name string, ctx Context) (*Target, error) {
	fieldName := fmt.Sprintf("Target %q", name)

	for k := range obj {
		if !availableOptions[k] {
			return nil, fmt.Errorf("target: unrecognized option in %s: %q", fieldName, k)
		}
	}

	t := &Target{Name: name}

	if raw, ok := obj["Abstract"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("target: in %s, expected \"Abstract\" to be a boolean", fieldName)
		}
		t.IsAbstract = b
	}

	if raw, ok := obj["Extends"]; ok {
		names, err := decodeBaseNames(raw, fieldName, ctx)
		if err != nil {
			return nil, err
		}
		t.BaseNames = names
	}

	addrMap, err := decodeSentinelName(obj, "AddrMap", fieldName, "Address Conversion Map Name", len(t.BaseNames) > 0, ctx)
	if err != nil {
		return nil, err
	}
	t.AddrMapName = addrMap

	baseRpx, err := decodeSentinelName(obj, "BaseRpx", fieldName, "Base RPX Filename", len(t.BaseNames) > 0, ctx)
	if err != nil {
		return nil, err
	}
	t.BaseRpxName = baseRpx

	if raw, ok := obj["Remove/Modules"]; ok && raw != nil {
		names, err := decodeModuleNames(raw, fmt.Sprintf("%s \"Remove/Modules\"", fieldName), ctx)
		if err != nil {
			return nil, err
		}
		t.RemoveModules = names
	}

	if raw, ok := obj["Add/Modules"]; ok && raw != nil {
		names, err := decodeModuleNames(raw, fmt.Sprintf("%s \"Add/Modules\"", fieldName), ctx)
		if err != nil {
			return nil, err
		}

		removed := make(map[string]bool, len(t.RemoveModules))
		for _, rm := range t.RemoveModules {
			removed[rm] = true
		}
		for _, path := range names {
			if removed[path] {
				return nil, fmt.Errorf("target: in %s, trying to add module that needs to be removed within the same target: %s", fieldName, path)
			}
		}

		mods := make(map[string]*module.Module, len(names))
		for _, path := range names {
			mod, err := ctx.LoadModule(path)
			if err != nil {
				return nil, err
			}
			mods[path] = mod
		}
		t.AddModules = mods
	}

	if raw, ok := obj["Remove/Defines"]; ok && raw != nil {
		names, err := decodeIdentifierList(raw, fmt.Sprintf("%s \"Remove/Defines\"", fieldName))
		if err != nil {
			return nil, err
		}
		t.RemoveDefines = names
	}

	if raw, ok := obj["Add/Defines"]; ok && raw != nil {
		defines, err := decodeDefines(raw, fieldName, ctx)
		if err != nil {
			return nil, err
		}
		t.AddDefines = defines
	}

	return t, nil
}

func decodeBaseNames(raw any, fieldName string, ctx Context) ([]string, error) {
	fn := fmt.Sprintf("%s Extending Target Name", fieldName)
	switch v := raw.(type) {
	case string:
		s, err := ctx.ProcessString(fn, v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("target: in %s, expected \"Extends\" to be a non-empty string or list of strings", fieldName)
		}
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("target: in %s, expected \"Extends\" entries to be strings", fieldName)
			}
			processed, err := ctx.ProcessString(fn, s)
			if err != nil {
				return nil, err
			}
			out = append(out, processed)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("target: in %s, expected \"Extends\" to be a string or a list of strings", fieldName)
	}
}

// decodeSentinelName resolves the {AddrMap,BaseRpx} "name or sentinel"
// pair: key absent uses "@inherit" if the target extends something, else
// "@self"; an explicit null in the YAML is also treated as "@inherit".
func decodeSentinelName(obj map[string]any, key, fieldName, label string, hasBase bool, ctx Context) (model.OptionalString, error) {
	if _, ok := obj[key]; !ok {
		if hasBase {
			return model.Str(sentinelInherit), nil
		}
		return model.Str(sentinelSelf), nil
	}

	v, err := ctx.ReadOptionalString(obj, key, fmt.Sprintf("%s %s", fieldName, label))
	if err != nil {
		return model.OptionalString{}, err
	}
	if v.Presence != model.Present {
		return model.Str(sentinelInherit), nil
	}
	return v, nil
}

func decodeModuleNames(raw any, fieldName string, ctx Context) ([]string, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("target: in %s, expected a list of strings", fieldName)
	}

	seen := map[string]bool{}
	var out []string
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("target: in %s, expected entries to be strings", fieldName)
		}
		name, err := ctx.ProcessString(fieldName, s)
		if err != nil {
			return nil, err
		}

		filePath := name + ".yaml"
		if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(ctx.ModulesBaseDir(), filePath)
		}
		filePath = filepath.Clean(filePath)

		if !seen[filePath] {
			seen[filePath] = true
			out = append(out, filePath)
		}
	}
	return out, nil
}

func decodeIdentifierList(raw any, fieldName string) ([]string, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("target: in %s, expected a list of strings", fieldName)
	}

	seen := map[string]bool{}
	var out []string
	for _, item := range list {
		k, ok := item.(string)
		if !ok || !model.IsIdentifier(k) {
			return nil, fmt.Errorf("target: in %s, invalid key: %v", fieldName, item)
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

func decodeDefines(raw any, fieldName string, ctx Context) ([]Define, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("target: in %s, expected \"Add/Defines\" to be a key-value mapping", fieldName)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	defines := make([]Define, 0, len(keys))
	for _, k := range keys {
		if !model.IsIdentifier(k) {
			return nil, fmt.Errorf("target: in %s, invalid key in \"Add/Defines\": %q", fieldName, k)
		}
		v := m[k]
		if v == nil {
			defines = append(defines, Define{Name: k})
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("target: in %s, expected value for %q in \"Add/Defines\" to be a string or null", fieldName, k)
		}
		processed, err := ctx.ProcessString(fmt.Sprintf("\"Add/Defines\" for key %q in %s", k, fieldName), s)
		if err != nil {
			return nil, err
		}
		defines = append(defines, Define{Name: k, Value: &processed})
	}
	return defines, nil
}
