// Package build orchestrates one (target, platform) build end to end:
// folding the target's base chain, generating and invoking the external
// GHS toolchain, splicing the linked object into a base RPX (or rendering
// CafeLoader console output), applying hooks, and writing final artifacts.
package build

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/zboralski/clpc/internal/addrmap"
	"github.com/zboralski/clpc/internal/binutil"
	"github.com/zboralski/clpc/internal/console"
	"github.com/zboralski/clpc/internal/hook"
	"github.com/zboralski/clpc/internal/linker"
	"github.com/zboralski/clpc/internal/log"
	"github.com/zboralski/clpc/internal/module"
	"github.com/zboralski/clpc/internal/patch"
	"github.com/zboralski/clpc/internal/project"
	"github.com/zboralski/clpc/internal/rplfmt"
	"github.com/zboralski/clpc/internal/rpxtool"
	"github.com/zboralski/clpc/internal/splice"
	"github.com/zboralski/clpc/internal/target"
	"github.com/zboralski/clpc/internal/verify"
)

// Platform selects which output path a build follows; it is addrmap's own
// PlatformType, reused rather than duplicated since the two concepts are
// one and the same.
type Platform = addrmap.PlatformType

const (
	Emulator   = addrmap.Emulator
	CafeLoader = addrmap.CafeLoader
)

// Options configures external tool locations and opt-in stages.
type Options struct {
	GHSPath     string
	RPXToolPath string

	// Verify gates the Unicorn-based post-patch sanity check; off by
	// default since it isn't needed for a normal build.
	Verify bool
}

// Artifact describes where a completed build's output landed.
type Artifact struct {
	Target   string
	Platform Platform

	// Emulator output.
	ELFPath string
	RPXPath string

	// CafeLoader output directory (Code.bin, Data.bin, Addr.bin, Patches.hax).
	OutDir string
}

// Reporter receives non-fatal diagnostics (skipped patches), the Go analogue of the original's error=print parameter.
type Reporter func(string)

// Orchestrator drives builds for one loaded Project.
type Orchestrator struct {
	Proj *project.Project
	Opts Options
	Log  *log.Logger
	Warn Reporter

	// StageObserver, if set, is called alongside Log.Stage for every
	// build-stage transition — the seam a progress UI or a remote
	// progress feed attaches to without needing a *log.Logger.
	StageObserver func(targetName, stage string)
}

func (o *Orchestrator) warn(msg string) {
	if o.Warn != nil {
		o.Warn(msg)
	}
	if o.Log != nil {
		o.Log.Warn(msg)
	}
}

// verifyHooks runs the Unicorn-based post-patch sanity check over every
// Branch/BranchLink/Return/NOP hook this build applied, confirming the
// bytes each hook produced land where its type promises. FuncPtr and Patch
// hooks carry no control-flow semantics for verify to check and are skipped.
func (o *Orchestrator) verifyHooks(hooks []hook.Hook, symbols map[string]uint32) error {
	for _, h := range hooks {
		switch h.(type) {
		case *hook.BranchHook, *hook.ReturnHook, *hook.NOPHook:
		default:
			continue
		}
		for _, addr := range h.Addresses() {
			res, err := verify.Check(h, addr, symbols)
			if err != nil {
				return fmt.Errorf("build: verifying hook at 0x%08X: %w", addr, err)
			}
			if !res.OK {
				return fmt.Errorf("build: hook at 0x%08X failed verification: %s", addr, res.Detail)
			}
		}
	}
	return nil
}

func (o *Orchestrator) stage(targetName, name string) {
	if o.Log != nil {
		o.Log.Stage(targetName, name)
	}
	if o.StageObserver != nil {
		o.StageObserver(targetName, name)
	}
}

// Build performs one (target, platform) build and returns its artifact.
func (o *Orchestrator) Build(targetName string, platform Platform) (*Artifact, error) {
	t, ok := o.Proj.Targets[targetName]
	if !ok {
		return nil, fmt.Errorf("build: unknown target %q", targetName)
	}
	if t.IsAbstract {
		return nil, fmt.Errorf("build: target %q is abstract and cannot be built", targetName)
	}
	o.stage(targetName, "resolve")

	modules, err := target.ResolvedModules(t, o.Proj.Modules)
	if err != nil {
		return nil, err
	}
	defines, err := target.ResolvedDefines(t, o.Proj.Defines)
	if err != nil {
		return nil, err
	}

	platformName := "Emulator"
	if platform == CafeLoader {
		platformName = "CafeLoader"
	}

	tempDir := filepath.Join(o.Proj.Path, "temp", platformName, o.Proj.Name, targetName)
	objDir := filepath.Join(tempDir, "obj-"+uuid.NewString())
	outDir := filepath.Join(o.Proj.Path, "out", platformName, o.Proj.Name)
	if platform == CafeLoader {
		outDir = filepath.Join(outDir, targetName)
	}
	for _, d := range []string{tempDir, objDir, outDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("build: creating directory %q: %w", d, err)
		}
	}

	textAlign, rodataAlign, dataAlign, bssAlign := resolveAlignments(o.Proj, modules)
	textAlignAll := textAlign
	dataAlignAll := maxU32(rodataAlign, dataAlign, bssAlign)

	addrMapName, err := target.ResolveAddrMapName(t)
	if err != nil {
		return nil, err
	}
	var resolvers map[string]*addrmap.Resolver
	if addrMapName != "" {
		resolvers, err = o.Proj.ResolveAddrMap(addrMapName)
		if err != nil {
			return nil, err
		}
	}

	var baseTextAddr, baseDataAddr, symsAddr uint32
	var baseElf *rplfmt.File
	var baseDataEnd, baseDynaEnd uint32

	switch platform {
	case CafeLoader:
		resolver, ok := resolvers["CafeLoader"]
		if !ok || resolver.TextAddr == nil || resolver.DataAddr == nil {
			return nil, fmt.Errorf("build: target %q requires a CafeLoader address map with concrete TextAddr/DataAddr", targetName)
		}
		baseTextAddr = *resolver.TextAddr
		baseDataAddr = *resolver.DataAddr

	case Emulator:
		baseRpxName, err := target.ResolveBaseRpxName(t)
		if err != nil {
			return nil, err
		}
		baseElf, err = o.Proj.LoadBaseRpx(baseRpxName)
		if err != nil {
			return nil, err
		}

		n := len(baseElf.Sections)
		if n < 2 || baseElf.Sections[n-1].Type != rplfmt.SHTRPLFileInfo || baseElf.Sections[n-2].Type != rplfmt.SHTRPLCRCs {
			return nil, fmt.Errorf("build: base RPX %q is missing the CRCS/FILEINFO trailer", baseRpxName)
		}

		baseTextEnd, err := sectionClassEnd(baseElf, rplfmt.TextRangeLo, rplfmt.TextRangeHi)
		if err != nil {
			return nil, fmt.Errorf("build: scanning base RPX text range: %w", err)
		}
		baseDataEnd, err = sectionClassEnd(baseElf, rplfmt.DataRangeLo, rplfmt.DataRangeHi)
		if err != nil {
			return nil, fmt.Errorf("build: scanning base RPX data range: %w", err)
		}
		baseDynaEnd, err = sectionClassEnd(baseElf, rplfmt.DynaRangeLo, rplfmt.DynaRangeHi)
		if err != nil {
			return nil, fmt.Errorf("build: scanning base RPX dyna range: %w", err)
		}

		baseTextAddr = baseTextEnd
		baseDataAddr = baseDataEnd
		symsAddr = baseDynaEnd
	}

	textAddr := binutil.Align(baseTextAddr, textAlignAll)
	dataAddr := binutil.Align(baseDataAddr, dataAlignAll)

	if platform == CafeLoader {
		if err := console.WriteAddr(outDir, textAddr, dataAddr); err != nil {
			return nil, err
		}
	}

	gpjPath := filepath.Join(tempDir, o.Proj.Name+".gpj")
	gpj := linker.GenerateGPJ(linker.GPJOptions{
		ObjPath:              objDir,
		PlatformIsEmulator:   platform == Emulator,
		PlatformIsConsole:    platform != Emulator,
		PlatformIsCafeLoader: platform == CafeLoader,
		TextAddr:             textAddr,
		DataAddr:             dataAddr,
		DefaultBuildOptions:  o.Proj.DefaultBuildOptions,
		IncludeDirs:          o.Proj.IncludeDirs,
		ExtraBuildOptions:    o.Proj.ExtraBuildOptions,
		Defines:              defines,
		Modules:              modules,
	})
	if err := os.WriteFile(gpjPath, []byte(gpj), 0o644); err != nil {
		return nil, fmt.Errorf("build: writing %s: %w", gpjPath, err)
	}

	o.stage(targetName, "compile")
	driver := linker.Driver{GHSPath: o.Opts.GHSPath}
	if err := driver.Build(gpjPath); err != nil {
		return nil, err
	}

	objFiles, err := filepath.Glob(filepath.Join(objDir, "*.o"))
	if err != nil {
		return nil, fmt.Errorf("build: globbing object files: %w", err)
	}
	for _, f := range objFiles {
		if err := stripType11Relocations(f); err != nil {
			return nil, fmt.Errorf("build: stripping relocations in %s: %w", f, err)
		}
	}

	var resolve func(uint32) (uint32, error)
	symbols := map[string]uint32{}
	for k, v := range o.Proj.Symbols {
		symbols[k] = v
	}
	if r, ok := resolvers[platformName]; ok {
		resolve = r.Resolve
		for name, addr := range symbols {
			resolved, err := r.Resolve(addr)
			if err != nil {
				return nil, fmt.Errorf("build: resolving symbol %q: %w", name, err)
			}
			symbols[name] = resolved
		}
	}

	symbolScriptPath := filepath.Join(tempDir, o.Proj.Name+".x")
	if err := os.WriteFile(symbolScriptPath, []byte(linker.GenerateSymbolScript(symbols)), 0o644); err != nil {
		return nil, err
	}

	memoryScriptPath := filepath.Join(tempDir, o.Proj.Name+".ld")
	memoryScript := linker.GenerateMemoryScript(linker.MemoryScriptOptions{
		TextAddr: textAddr, DataAddr: dataAddr,
		TextAlign: textAlign, RodataAlign: rodataAlign, DataAlign: dataAlign, BssAlign: bssAlign,
	})
	if err := os.WriteFile(memoryScriptPath, []byte(memoryScript), 0o644); err != nil {
		return nil, err
	}

	o.stage(targetName, "link")
	objPath := filepath.Join(tempDir, o.Proj.Name+".o")
	if err := driver.Link(symbolScriptPath, memoryScriptPath, objPath, objFiles); err != nil {
		return nil, err
	}

	objBytes, err := os.ReadFile(objPath)
	if err != nil {
		return nil, fmt.Errorf("build: reading linked object: %w", err)
	}
	obj, err := rplfmt.Read(objBytes)
	if err != nil {
		return nil, fmt.Errorf("build: parsing linked object: %w", err)
	}

	allHooks := flattenHooks(modules)

	switch platform {
	case CafeLoader:
		text := obj.Section(".text")
		if text == nil {
			return nil, fmt.Errorf("build: linked object has no .text section")
		}
		if err := console.WriteCode(outDir, text); err != nil {
			return nil, err
		}
		if err := console.WriteData(outDir, dataAddr, obj.Section(".rodata"), obj.Section(".data")); err != nil {
			return nil, err
		}
		payload, err := patch.ApplyConsole(allHooks, symbols, resolve)
		if err != nil {
			return nil, err
		}
		if err := console.WritePatches(outDir, payload); err != nil {
			return nil, err
		}
		return &Artifact{Target: targetName, Platform: platform, OutDir: outDir}, nil

	default: // Emulator
		text, symtab, strtab := obj.Section(".text"), obj.Section(".symtab"), obj.Section(".strtab")

		o.stage(targetName, "splice")
		res, err := splice.Splice(baseElf, obj, symsAddr, baseDataEnd, baseDynaEnd)
		if err != nil {
			return nil, err
		}
		if o.Log != nil {
			for _, e := range res.Entries {
				o.Log.Splice(e.Section.Name, uint64(e.Section.Addr), uint64(e.Section.Size))
			}
		}

		o.stage(targetName, "hooks")
		if err := patch.ApplyEmulator(allHooks, symbols, resolve, res.Entries, o.warn); err != nil {
			return nil, err
		}

		if o.Opts.Verify {
			o.stage(targetName, "verify")
			if err := o.verifyHooks(allHooks, symbols); err != nil {
				return nil, err
			}
		}

		if err := splice.ExtractTextSymbols(obj, symtab, strtab, text, symbols); err != nil {
			return nil, err
		}

		o.stage(targetName, "crc")
		if err := baseElf.RecomputeCRCS(); err != nil {
			return nil, err
		}

		o.stage(targetName, "write")
		elfPath := filepath.Join(outDir, targetName+".elf")
		rpxPath := filepath.Join(outDir, targetName+".rpx")

		buf, err := baseElf.Write()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(elfPath, buf, 0o644); err != nil {
			return nil, err
		}

		tool := rpxtool.Tool{Path: o.Opts.RPXToolPath}
		if err := tool.Compress(elfPath, rpxPath); err != nil {
			return nil, err
		}

		return &Artifact{Target: targetName, Platform: platform, ELFPath: elfPath, RPXPath: rpxPath}, nil
	}
}

func resolveAlignments(proj *project.Project, modules map[string]*module.Module) (text, rodata, data, bss uint32) {
	text, rodata, data, bss = proj.SectionAlign["text"], proj.SectionAlign["rodata"], proj.SectionAlign["data"], proj.SectionAlign["bss"]
	for _, m := range modules {
		text = maxU32(text, m.SectionAlign["text"])
		rodata = maxU32(rodata, m.SectionAlign["rodata"])
		data = maxU32(data, m.SectionAlign["data"])
		bss = maxU32(bss, m.SectionAlign["bss"])
	}
	return
}

func maxU32(vals ...uint32) uint32 {
	m := uint32(0)
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}

// sectionClassEnd returns the highest Addr+Size among base's sections
// whose address falls in [lo, hi).
func sectionClassEnd(f *rplfmt.File, lo, hi uint32) (uint32, error) {
	found := false
	var end uint32
	for _, s := range f.Sections {
		if s.Addr >= lo && s.Addr < hi {
			found = true
			if e := s.Addr + s.Size; e > end {
				end = e
			}
		}
	}
	if !found {
		return 0, fmt.Errorf("no section found in range [0x%08X, 0x%08X)", lo, hi)
	}
	return end, nil
}

// stripType11Relocations removes every relocation whose type byte is
// 0x0B (R_PPC_SDA21-class "do not emit") from every .rela section in the
// object at path, rewriting it in place.
func stripType11Relocations(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := rplfmt.Read(b)
	if err != nil {
		return err
	}
	for _, s := range f.SectionsByType(rplfmt.SHTRela) {
		kept := s.Relas[:0]
		for _, r := range s.Relas {
			if r.Type() == 0x0B {
				continue
			}
			kept = append(kept, r)
		}
		s.Relas = kept
	}
	out, err := f.Write()
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func flattenHooks(modules map[string]*module.Module) []hook.Hook {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []hook.Hook
	for _, name := range names {
		out = append(out, modules[name].Hooks...)
	}
	return out
}
