// Package project models the Project document: the root of the YAML
// configuration tree. It owns the module table, the default GHS build
// options, the target table, the resolved project-wide symbol table, and
// the variable-substitution / optional-string helpers that every nested
// decode (Module, Target) calls back into through the module.Context and
// target.Context interfaces.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"gopkg.in/yaml.v3"

	"github.com/zboralski/clpc/internal/addrmap"
	"github.com/zboralski/clpc/internal/binutil"
	"github.com/zboralski/clpc/internal/model"
	"github.com/zboralski/clpc/internal/module"
	"github.com/zboralski/clpc/internal/rplfmt"
	"github.com/zboralski/clpc/internal/target"
)

// wuappsVersionMin/Max bound the accepted "WUAPPSVersion" project field.
var (
	wuappsVersionMin = [2]int{3, 0}
	wuappsVersionMax = [2]int{3, 0}
)

const maxSectionAlign = 0x2000

var alignmentKeys = map[string]bool{"text": true, "rodata": true, "data": true, "bss": true}

// BuildOption is one GHS compiler flag: a bare switch, or one with a
// value (`-kanji shiftjis`).
type BuildOption struct {
	Name  string
	Value *string
}

// Variable is one `$name` substitution entry, matched longest-name-first.
type Variable struct {
	Name  string
	Value string
}

// Project is the decoded, immutable-after-load root document.
type Project struct {
	Path string // project directory (dirname of the YAML file), absolute

	Name      string
	Variables []Variable // sorted by descending name length

	ModulesBaseDirValue string
	SrcBaseDirValue     string // "" means unset
	IncludeDirs         []string
	RpxDir              string
	AddrMapExt          string

	Modules map[string]*module.Module // keyed by absolute module YAML path
	Defines []target.Define           // project-level Defines, folded against each target's chain

	DefaultBuildOptions []BuildOption
	ExtraBuildOptions   []string

	// SectionAlign holds the project-wide minimum per-section alignment
	// for "text"/"rodata"/"data"/"bss"; a module's own SectionAlign
	// overrides this per-class.
	SectionAlign map[string]uint32

	Targets map[string]*target.Target
	Symbols map[string]uint32

	collaborators Collaborators
	fileCache     map[string]*module.Module
	addrMapCache  map[string]map[string]*addrmap.Resolver
	rpxCache      map[string]*rplfmt.File
}

var projectOptions = map[string]bool{
	"WUAPPSVersion":              true,
	"Name":                       true,
	"Variables":                  true,
	"ModulesBaseDir":             true,
	"SourcesBaseDir":             true,
	"IncludeDirs":                true,
	"RpxDir":                     true,
	"ExcludeDefaultBuildOptions": true,
	"AddrMapFileExtension":       true,
	"Modules":                    true,
	"Defines":                    true,
	"Targets":                    true,
	"ExtraBuildOptions":          true,
	"Alignments":                 true,
}

func defaultBuildOptions() []BuildOption {
	kanji := "shiftjis"
	return []BuildOption{
		{Name: "-c99"},
		{Name: "--g++"},
		{Name: "--link_once_templates"},
		{Name: "--enable_noinline"},
		{Name: "--max_inlining"},
		{Name: "--no_exceptions"},
		{Name: "--no_rtti"},
		{Name: "--no_implicit_include"},
		{Name: "-no_ansi_alias"},
		{Name: "-only_explicit_reg_use"},
		{Name: "-kanji", Value: &kanji},
		{Name: "-Ospeed"},
		{Name: "-Onounroll"},
	}
}

// New returns a project rooted at path with its defaults populated,
// matching Project.__init__ in the original tool.
func New(path string, collab Collaborators) (*Project, error) {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		path = abs
	}

	return &Project{
		Path:                path,
		ModulesBaseDirValue: path,
		IncludeDirs:         []string{filepath.Join(path, "include")},
		RpxDir:              filepath.Join(path, "rpxs"),
		AddrMapExt:          ".offs",
		Modules:             map[string]*module.Module{},
		DefaultBuildOptions: defaultBuildOptions(),
		SectionAlign:        map[string]uint32{"text": 4, "rodata": 4, "data": 4, "bss": 4},
		Targets:             map[string]*target.Target{},
		Symbols:             map[string]uint32{},
		collaborators:       collab,
		fileCache:           map[string]*module.Module{},
		addrMapCache:        map[string]map[string]*addrmap.Resolver{},
		rpxCache:            map[string]*rplfmt.File{},
	}, nil
}

// ProcessVariables performs literal `$name` substitution, matching the
// longest-named variable whose name prefixes each `$`-delimited part.
func (p *Project) ProcessVariables(s string) (string, error) {
	parts := strings.Split(s, "$")
	out := make([]string, 0, len(parts))
	out = append(out, parts[0])

	for _, part := range parts[1:] {
		matched := false
		for _, v := range p.Variables {
			if strings.HasPrefix(part, v.Name) {
				part = v.Value + part[len(v.Name):]
				matched = true
				break
			}
		}
		if !matched {
			return "", fmt.Errorf("project: unable to process variables in string: %q", s)
		}
		out = append(out, part)
	}

	return strings.Join(out, ""), nil
}

// ProcessString validates s is a non-empty string and substitutes
// variables; it is the Context.ProcessString every nested decode uses.
func (p *Project) ProcessString(fieldName, s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("project: invalid value in %s: %q", fieldName, s)
	}
	out, err := p.ProcessVariables(s)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("project: invalid value in %s: %q", fieldName, s)
	}
	return out, nil
}

// ReadOptionalString reads obj[key] as a tri-state optional string,
// running ProcessString on a concrete value. Satisfies target.Context.
func (p *Project) ReadOptionalString(obj map[string]any, key, fieldName string) (model.OptionalString, error) {
	raw, ok := obj[key]
	if !ok {
		return model.NotSet(), nil
	}
	if raw == nil {
		return model.Null(), nil
	}
	s, ok := raw.(string)
	if !ok {
		return model.OptionalString{}, fmt.Errorf("project: %s is invalid", fieldName)
	}
	processed, err := p.ProcessString(fieldName, s)
	if err != nil {
		return model.OptionalString{}, err
	}
	return model.Str(processed), nil
}

// readRequiredString reads a mandatory string field, erroring if absent,
// null, empty, or not a string.
func (p *Project) readRequiredString(obj map[string]any, key, fieldName string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("project: %s not specified", fieldName)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("project: %s is invalid", fieldName)
	}
	return p.ProcessString(fieldName, s)
}

// SrcBaseDir satisfies module.Context.
func (p *Project) SrcBaseDir() string { return p.SrcBaseDirValue }

// ModulesBaseDir satisfies target.Context.
func (p *Project) ModulesBaseDir() string { return p.ModulesBaseDirValue }

// LoadModule loads and caches a module by its absolute YAML path,
// satisfying target.Context.
func (p *Project) LoadModule(path string) (*module.Module, error) {
	if m, ok := p.fileCache[path]; ok {
		return m, nil
	}
	m, err := module.FromYaml(path, p)
	if err != nil {
		return nil, err
	}
	p.fileCache[path] = m
	return m, nil
}

// ResolveAddrMap loads and caches, by absolute path, the named
// address-conversion-map file as a ready-to-use platform resolver table.
// Per spec.md §4.3 step 5, this load is lazy: it only happens when a
// target actually needs this address map.
func (p *Project) ResolveAddrMap(name string) (map[string]*addrmap.Resolver, error) {
	path := filepath.Clean(filepath.Join(p.Path, name+p.AddrMapExt))
	if r, ok := p.addrMapCache[path]; ok {
		return r, nil
	}
	if p.collaborators.ParseAddrMap == nil {
		return nil, fmt.Errorf("project: no address-map parser configured")
	}
	doc, err := p.collaborators.ParseAddrMap(path)
	if err != nil {
		return nil, fmt.Errorf("project: loading address map %q: %w", path, err)
	}
	resolvers, err := addrmap.Build(doc, addrmap.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("project: building address map %q: %w", path, err)
	}
	p.addrMapCache[path] = resolvers
	return resolvers, nil
}

// LoadBaseRpx loads and caches, by absolute path, the named base RPX file
// from the project's RpxDir.
func (p *Project) LoadBaseRpx(name string) (*rplfmt.File, error) {
	path := filepath.Clean(filepath.Join(p.RpxDir, name+".rpx"))
	if f, ok := p.rpxCache[path]; ok {
		return f, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: reading base RPX %q: %w", path, err)
	}
	f, err := rplfmt.Read(raw)
	if err != nil {
		return nil, fmt.Errorf("project: parsing base RPX %q: %w", path, err)
	}
	p.rpxCache[path] = f
	return f, nil
}

// FromYaml decodes a Project document rooted at file_path.
func FromYaml(filePath string, collab Collaborators) (*Project, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("project: file does not exist: %q", filePath)
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	var obj map[string]any
	if err := yaml.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("project: unexpected file format for file %q", filePath)
	}

	dir := filepath.Dir(filePath)
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		dir = abs
	}

	for k := range obj {
		if !projectOptions[k] {
			return nil, fmt.Errorf("project: unrecognized option: %q", k)
		}
	}

	proj, err := New(dir, collab)
	if err != nil {
		return nil, err
	}

	if err := proj.decodeVariables(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeVersion(obj); err != nil {
		return nil, err
	}

	name, err := proj.readRequiredString(obj, "Name", "Project Name")
	if err != nil {
		return nil, err
	}
	proj.Name = name

	if err := proj.decodeModulesBaseDir(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeSrcBaseDir(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeIncludeDirs(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeRpxDir(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeExcludeDefaultBuildOptions(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeAddrMapExt(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeExtraBuildOptions(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeAlignments(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeModules(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeDefines(obj); err != nil {
		return nil, err
	}
	if err := proj.decodeTargets(obj); err != nil {
		return nil, err
	}
	if err := proj.loadSymbolMap(); err != nil {
		return nil, err
	}

	return proj, nil
}

func (p *Project) decodeVariables(obj map[string]any) error {
	raw, ok := obj["Variables"]
	if !ok || raw == nil {
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("project: expected \"Variables\" to be a key-value mapping")
	}

	vars := make([]Variable, 0, len(m))
	for k, v := range m {
		if !model.IsIdentifier(k) {
			return fmt.Errorf("project: invalid key in \"Variables\": %q", k)
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("project: invalid value for key in \"Variables\": (%q, %v)", k, v)
		}
		vars = append(vars, Variable{Name: k, Value: s})
	}

	sort.SliceStable(vars, func(i, j int) bool { return len(vars[i].Name) > len(vars[j].Name) })
	p.Variables = vars
	return nil
}

func (p *Project) decodeVersion(obj map[string]any) error {
	versionStr, err := p.readRequiredString(obj, "WUAPPSVersion", "WUAPPS Version")
	if err != nil {
		return err
	}

	parts := strings.SplitN(versionStr, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("project: unexpected WUAPPSVersion format: %q", versionStr)
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return fmt.Errorf("project: unexpected WUAPPSVersion format: %q", versionStr)
	}

	below := major < wuappsVersionMin[0] || (major == wuappsVersionMin[0] && minor < wuappsVersionMin[1])
	above := major > wuappsVersionMax[0] || (major == wuappsVersionMax[0] && minor > wuappsVersionMax[1])
	if below || above {
		return fmt.Errorf("project: version mismatch, specified version: %q, supported range: %d.%d-%d.%d",
			versionStr, wuappsVersionMin[0], wuappsVersionMin[1], wuappsVersionMax[0], wuappsVersionMax[1])
	}
	return nil
}

func (p *Project) decodeModulesBaseDir(obj map[string]any) error {
	v, err := p.ReadOptionalString(obj, "ModulesBaseDir", "Modules Base Directory")
	if err != nil {
		return err
	}
	if v.Presence != model.Present {
		return nil
	}
	dir := v.Value
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(p.Path, dir)
	}
	p.ModulesBaseDirValue = dir
	return nil
}

func (p *Project) decodeSrcBaseDir(obj map[string]any) error {
	v, err := p.ReadOptionalString(obj, "SourcesBaseDir", "Sources Base Directory")
	if err != nil {
		return err
	}
	if v.Presence != model.Present {
		return nil
	}
	dir := v.Value
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(p.Path, dir)
	}
	p.SrcBaseDirValue = dir
	return nil
}

func (p *Project) decodeIncludeDirs(obj map[string]any) error {
	raw, ok := obj["IncludeDirs"]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("project: expected \"IncludeDirs\" to be a list of strings")
	}

	seen := map[string]bool{}
	var out []string
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return fmt.Errorf("project: expected \"IncludeDirs\" entries to be strings")
		}
		dir, err := p.ProcessString("\"IncludeDirs\"", s)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(p.Path, dir)
		}
		dir = filepath.Clean(dir)
		if !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
		}
	}
	p.IncludeDirs = out
	return nil
}

func (p *Project) decodeRpxDir(obj map[string]any) error {
	v, err := p.ReadOptionalString(obj, "RpxDir", "RPX Files Directory")
	if err != nil {
		return err
	}
	if v.Presence != model.Present {
		return nil
	}
	p.RpxDir = v.Value
	return nil
}

func (p *Project) decodeExcludeDefaultBuildOptions(obj map[string]any) error {
	raw, ok := obj["ExcludeDefaultBuildOptions"]
	if !ok {
		return nil
	}
	if b, ok := raw.(bool); ok {
		if b {
			p.DefaultBuildOptions = nil
		}
		return nil
	}

	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("project: expected \"ExcludeDefaultBuildOptions\" to be a list of strings")
	}

	exclude := map[string]bool{}
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return fmt.Errorf("project: expected \"ExcludeDefaultBuildOptions\" entries to be strings")
		}
		name, err := p.ProcessString("\"ExcludeDefaultBuildOptions\"", s)
		if err != nil {
			return err
		}
		exclude[name] = true
	}

	for name := range exclude {
		idx := -1
		for i, opt := range p.DefaultBuildOptions {
			if opt.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("project: unrecognized build option: %q", name)
		}
		p.DefaultBuildOptions = append(p.DefaultBuildOptions[:idx], p.DefaultBuildOptions[idx+1:]...)
	}
	return nil
}

func (p *Project) decodeAddrMapExt(obj map[string]any) error {
	v, err := p.ReadOptionalString(obj, "AddrMapFileExtension", "Address Offsets Maps Extension")
	if err != nil {
		return err
	}
	if v.Presence != model.Present {
		return nil
	}
	p.AddrMapExt = "." + v.Value
	return nil
}

func (p *Project) decodeExtraBuildOptions(obj map[string]any) error {
	raw, ok := obj["ExtraBuildOptions"]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("project: expected \"ExtraBuildOptions\" to be a list of strings")
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return fmt.Errorf("project: expected \"ExtraBuildOptions\" entries to be strings")
		}
		processed, err := p.ProcessString("\"ExtraBuildOptions\"", s)
		if err != nil {
			return err
		}
		out = append(out, processed)
	}
	p.ExtraBuildOptions = out
	return nil
}

func (p *Project) decodeAlignments(obj map[string]any) error {
	raw, ok := obj["Alignments"]
	if !ok || raw == nil {
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("project: expected \"Alignments\" to be a key-value mapping")
	}
	for k, v := range m {
		if !alignmentKeys[k] {
			return fmt.Errorf("project: unrecognized section in \"Alignments\": %q", k)
		}
		n, ok := v.(int)
		if !ok || n <= 0 || n > maxSectionAlign || !binutil.IsPowerOfTwo(uint32(n)) {
			return fmt.Errorf("project: \"Alignments\".%s must be a power of two no greater than 0x%X, got %v", k, maxSectionAlign, v)
		}
		p.SectionAlign[k] = uint32(n)
	}
	return nil
}

func (p *Project) decodeModules(obj map[string]any) error {
	raw, ok := obj["Modules"]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("project: expected \"Modules\" to be a list of strings")
	}

	seen := map[string]bool{}
	var paths []string
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return fmt.Errorf("project: expected \"Modules\" entries to be strings")
		}
		name, err := p.ProcessString("\"Modules\"", s)
		if err != nil {
			return err
		}
		filePath := name + ".yaml"
		if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(p.ModulesBaseDirValue, filePath)
		}
		filePath = filepath.Clean(filePath)
		if !seen[filePath] {
			seen[filePath] = true
			paths = append(paths, filePath)
		}
	}

	modules := make(map[string]*module.Module, len(paths))
	for _, filePath := range paths {
		m, err := p.LoadModule(filePath)
		if err != nil {
			return err
		}
		modules[filePath] = m
	}
	p.Modules = modules
	return nil
}

func (p *Project) decodeDefines(obj map[string]any) error {
	raw, ok := obj["Defines"]
	if !ok || raw == nil {
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("project: expected \"Defines\" to be a key-value mapping")
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	defines := make([]target.Define, 0, len(keys))
	for _, k := range keys {
		if !model.IsIdentifier(k) {
			return fmt.Errorf("project: invalid key in \"Defines\": %q", k)
		}
		v := m[k]
		if v == nil {
			defines = append(defines, target.Define{Name: k})
			continue
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("project: expected value for %q in \"Defines\" to be a string or null", k)
		}

		if expr, ok := strings.CutPrefix(s, "expr:"); ok {
			processed, err := p.evaluateExpr(k, expr)
			if err != nil {
				return err
			}
			defines = append(defines, target.Define{Name: k, Value: &processed})
			continue
		}

		processed, err := p.ProcessString(fmt.Sprintf("\"Defines\" for key %q", k), s)
		if err != nil {
			return err
		}
		defines = append(defines, target.Define{Name: k, Value: &processed})
	}
	p.Defines = defines
	return nil
}

// evaluateExpr evaluates expr as a JavaScript expression in a fresh goja VM
// with the project's resolved Variables and module count bound in, and
// stringifies the result for use as a Define value.
func (p *Project) evaluateExpr(defineName, expr string) (string, error) {
	vm := goja.New()
	for _, v := range p.Variables {
		if err := vm.Set(v.Name, v.Value); err != nil {
			return "", fmt.Errorf("project: binding variable %q for \"Defines\" key %q: %w", v.Name, defineName, err)
		}
	}
	if err := vm.Set("moduleCount", len(p.Modules)); err != nil {
		return "", fmt.Errorf("project: binding moduleCount for \"Defines\" key %q: %w", defineName, err)
	}

	result, err := vm.RunString(expr)
	if err != nil {
		return "", fmt.Errorf("project: evaluating expr for \"Defines\" key %q: %w", defineName, err)
	}
	return result.String(), nil
}

func (p *Project) decodeTargets(obj map[string]any) error {
	raw, ok := obj["Targets"]
	if !ok || raw == nil {
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("project: expected \"Targets\" to be a key-value mapping")
	}

	targets := make(map[string]*target.Target, len(m))
	for name, targetObj := range m {
		if name == "" || !model.IsValidFilename(name) {
			return fmt.Errorf("project: target name is invalid as filename: %q", name)
		}
		to, ok := targetObj.(map[string]any)
		if !ok {
			return fmt.Errorf("project: expected Target %q to be a key-value mapping", name)
		}
		t, err := target.FromObj(to, name, p)
		if err != nil {
			return err
		}
		targets[name] = t
	}

	if err := target.ResolveBases(targets); err != nil {
		return err
	}

	p.Targets = targets
	return nil
}

func (p *Project) loadSymbolMap() error {
	path := filepath.Clean(filepath.Join(p.Path, "syms", "main.map"))
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if p.collaborators.ParseSymbolMap == nil {
		return fmt.Errorf("project: no symbol-map parser configured")
	}
	syms, err := p.collaborators.ParseSymbolMap(path)
	if err != nil {
		return fmt.Errorf("project: loading symbol map %q: %w", path, err)
	}
	p.Symbols = syms
	return nil
}
