package linker

import (
	"strings"
	"testing"

	"github.com/zboralski/clpc/internal/module"
	"github.com/zboralski/clpc/internal/target"
)

func TestGenerateGPJIncludesPlatformMacrosAndAddrs(t *testing.T) {
	gpj := GenerateGPJ(GPJOptions{
		ObjPath:              "/tmp/obj",
		PlatformIsCafeLoader: true,
		PlatformIsConsole:    true,
		TextAddr:             0x02100000,
		DataAddr:             0x10200000,
	})

	for _, want := range []string{
		"-DPLATFORM_IS_EMULATOR=0",
		"-DPLATFORM_IS_CONSOLE=1",
		"-DPLATFORM_IS_CONSOLE_CAFELOADER=1",
		"-DTEXT_ADDR=0x02100000",
		"-DDATA_ADDR=0x10200000",
	} {
		if !strings.Contains(gpj, want) {
			t.Errorf("expected gpj to contain %q, got:\n%s", want, gpj)
		}
	}
}

func TestGenerateGPJRendersDefinesAndModuleFiles(t *testing.T) {
	val := "1"
	mods := map[string]*module.Module{
		"/abs/foo.yaml": {Files: [3][]string{{"/src/foo.c"}, nil, nil}},
	}

	gpj := GenerateGPJ(GPJOptions{
		Defines: []target.Define{{Name: "FOO"}, {Name: "BAR", Value: &val}},
		Modules: mods,
	})

	if !strings.Contains(gpj, "\t-DFOO") {
		t.Errorf("expected rendered -DFOO define, got:\n%s", gpj)
	}
	if !strings.Contains(gpj, "\t-DBAR=1") {
		t.Errorf("expected rendered -DBAR=1 define, got:\n%s", gpj)
	}
	if !strings.Contains(gpj, "/src/foo.c [C]") {
		t.Errorf("expected tagged C file entry, got:\n%s", gpj)
	}
}

func TestRenderDefine(t *testing.T) {
	if got := RenderDefine(target.Define{Name: "FOO"}); got != "-DFOO" {
		t.Errorf("expected -DFOO, got %q", got)
	}
	val := "bar"
	if got := RenderDefine(target.Define{Name: "FOO", Value: &val}); got != "-DFOO=bar" {
		t.Errorf("expected -DFOO=bar, got %q", got)
	}
}

func TestGenerateSymbolScriptSortedAndFormatted(t *testing.T) {
	script := GenerateSymbolScript(map[string]uint32{
		"zeta":  0x100,
		"alpha": 0x200,
	})

	alphaIdx := strings.Index(script, "alpha")
	zetaIdx := strings.Index(script, "zeta")
	if alphaIdx < 0 || zetaIdx < 0 || alphaIdx > zetaIdx {
		t.Errorf("expected alpha before zeta in sorted output, got:\n%s", script)
	}
	if !strings.Contains(script, "alpha = 0x00000200;") {
		t.Errorf("expected formatted symbol line, got:\n%s", script)
	}
}

func TestGenerateMemoryScriptRegions(t *testing.T) {
	ld := GenerateMemoryScript(MemoryScriptOptions{
		TextAddr:    0x02100000,
		DataAddr:    0x10200000,
		TextAlign:   0x20,
		RodataAlign: 0x10,
		DataAlign:   0x10,
		BssAlign:    0x20,
	})

	if !strings.Contains(ld, "codearea : origin = 0x02100000, length = 0x0DF00000") {
		t.Errorf("expected codearea region, got:\n%s", ld)
	}
	if !strings.Contains(ld, "dataarea : origin = 0x10200000, length = 0xAFE00000") {
		t.Errorf("expected dataarea region, got:\n%s", ld)
	}
	if !strings.Contains(ld, ".text       ALIGN(0x0020)") {
		t.Errorf("expected text alignment, got:\n%s", ld)
	}
}
