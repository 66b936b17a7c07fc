// Package linker generates the three documents an external GHS toolchain
// build needs (Project.gpj, the symbol script, the memory script) and
// shells out to that toolchain, the way the original tool's string
// templates and subprocess.call invocations do.
package linker

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zboralski/clpc/internal/module"
	"github.com/zboralski/clpc/internal/project"
	"github.com/zboralski/clpc/internal/target"
)

const gpjHeaderTemplate = "#!gbuild\nprimaryTarget=ppc_cos_ndebug.tgt\n[Project]\n\t-object_dir=\"%s\"\n\t--no_commons\n\t-cpu=espresso\n\t-sda=none\n\t-MD\n\t-Dcafe"

// GPJOptions bundles everything GenerateGPJ needs to render one
// Project.gpj document for a single (target, platform) build.
type GPJOptions struct {
	ObjPath string

	PlatformIsEmulator   bool
	PlatformIsConsole    bool
	PlatformIsCafeLoader bool

	TextAddr, DataAddr uint32

	DefaultBuildOptions []project.BuildOption
	IncludeDirs         []string
	ExtraBuildOptions   []string
	Defines             []target.Define
	Modules             map[string]*module.Module
}

// GenerateGPJ renders the primary-target header, the three platform
// macros, TEXT_ADDR/DATA_ADDR, the project's default build options,
// include dirs, extra build options, resolved Defines rendered as `-D`
// compiler macros, and finally each module's tagged file entries.
// Modules are emitted in path-sorted order for reproducible output; the
// original iterates a plain dict whose order isn't a build input.
func GenerateGPJ(opts GPJOptions) string {
	lines := []string{
		fmt.Sprintf(gpjHeaderTemplate, filepath.ToSlash(opts.ObjPath)),
		fmt.Sprintf("\t-DPLATFORM_IS_EMULATOR=%d", boolToInt(opts.PlatformIsEmulator)),
		fmt.Sprintf("\t-DPLATFORM_IS_CONSOLE=%d", boolToInt(opts.PlatformIsConsole)),
		fmt.Sprintf("\t-DPLATFORM_IS_CONSOLE_CAFELOADER=%d", boolToInt(opts.PlatformIsCafeLoader)),
		fmt.Sprintf("\t-DTEXT_ADDR=0x%08X", opts.TextAddr),
		fmt.Sprintf("\t-DDATA_ADDR=0x%08X", opts.DataAddr),
	}

	for _, bo := range opts.DefaultBuildOptions {
		if bo.Value != nil {
			lines = append(lines, fmt.Sprintf("\t%s=%s", bo.Name, *bo.Value))
		} else {
			lines = append(lines, "\t"+bo.Name)
		}
	}

	for _, dir := range opts.IncludeDirs {
		lines = append(lines, fmt.Sprintf("\t-I\"%s\"", filepath.ToSlash(dir)))
	}

	for _, extra := range opts.ExtraBuildOptions {
		lines = append(lines, "\t"+extra)
	}

	for _, d := range opts.Defines {
		lines = append(lines, "\t"+RenderDefine(d))
	}

	moduleNames := make([]string, 0, len(opts.Modules))
	for name := range opts.Modules {
		moduleNames = append(moduleNames, name)
	}
	sort.Strings(moduleNames)

	for _, name := range moduleNames {
		m := opts.Modules[name]
		for _, f := range m.Files[module.ClassC] {
			lines = append(lines, fmt.Sprintf("%s [C]", filepath.ToSlash(f)))
		}
		for _, f := range m.Files[module.ClassCPP] {
			lines = append(lines, fmt.Sprintf("%s [C++]", filepath.ToSlash(f)))
		}
		for _, f := range m.Files[module.ClassAsm] {
			lines = append(lines, fmt.Sprintf("%s [Assembly]", filepath.ToSlash(f)))
		}
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// RenderDefine renders one build-option Define as a GHS compiler macro:
// "-DNAME" when Value is nil, "-DNAME=VALUE" otherwise.
func RenderDefine(d target.Define) string {
	if d.Value == nil {
		return "-D" + d.Name
	}
	return fmt.Sprintf("-D%s=%s", d.Name, *d.Value)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GenerateSymbolScript renders the Project.x symbol script: one
// `NAME = 0xADDR;` line per resolved symbol. Names are sorted for
// reproducible output; the original preserves symbol-map file order,
// which this package's map-shaped Symbols input doesn't retain.
func GenerateSymbolScript(symbols map[string]uint32) string {
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("\t%s = 0x%08X;", name, symbols[name]))
	}

	return fmt.Sprintf("\nSECTIONS {\n\n%s\n\n}\n", strings.Join(lines, "\n"))
}

// MemoryScriptOptions bundles the resolved addresses and per-class
// alignments GenerateMemoryScript needs.
type MemoryScriptOptions struct {
	TextAddr, DataAddr uint32

	TextAlign, RodataAlign, DataAlign, BssAlign uint32
}

const ldTemplate = `
MEMORY
{
    codearea : origin = 0x%08X, length = 0x%08X
    dataarea : origin = 0x%08X, length = 0x%08X
}

OPTION("-append")

SECTIONS
{
    .text       ALIGN(0x%04X)   :   > codearea

    .rodata     ALIGN(0x%04X)   :   > dataarea
    .data       ALIGN(0x%04X)   :   > dataarea
    .bss        ALIGN(0x%04X)   :   > dataarea
}
`

// GenerateMemoryScript renders the Project.ld memory layout script: a
// codearea region starting at TextAddr running to 0x10000000, and a
// dataarea region starting at DataAddr running to 0xC0000000.
func GenerateMemoryScript(opts MemoryScriptOptions) string {
	return fmt.Sprintf(ldTemplate,
		opts.TextAddr, 0x10000000-opts.TextAddr,
		opts.DataAddr, 0xC0000000-opts.DataAddr,
		opts.TextAlign, opts.RodataAlign, opts.DataAlign, opts.BssAlign,
	)
}
