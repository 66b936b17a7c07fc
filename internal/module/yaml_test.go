package module

import (
	"os"
	"path/filepath"
	"testing"
)

type yamlTestCtx struct{ srcBaseDir string }

func (c yamlTestCtx) ProcessString(fieldName, raw string) (string, error) { return raw, nil }
func (c yamlTestCtx) SrcBaseDir() string                                  { return c.srcBaseDir }

func TestFromYamlFilesAndHooks(t *testing.T) {
	dir := t.TempDir()
	srcFile := filepath.Join(dir, "foo.c")
	if err := os.WriteFile(srcFile, []byte("// empty\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	doc := `
Files:
  C:
    - foo.c
Hooks:
  - type: return
    addr: 0x02100000
Alignments:
  text: 32
`
	modPath := filepath.Join(dir, "mymodule.yaml")
	if err := os.WriteFile(modPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := FromYaml(modPath, yamlTestCtx{srcBaseDir: dir})
	if err != nil {
		t.Fatalf("FromYaml: %v", err)
	}
	if len(m.Files[ClassC]) != 1 {
		t.Fatalf("expected 1 C file, got %d: %v", len(m.Files[ClassC]), m.Files[ClassC])
	}
	if len(m.Hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(m.Hooks))
	}
	if m.SectionAlign["text"] != 32 {
		t.Errorf("expected text alignment 32, got %d", m.SectionAlign["text"])
	}
}

func TestFromYamlRejectsUnrecognizedOption(t *testing.T) {
	dir := t.TempDir()
	modPath := filepath.Join(dir, "mymodule.yaml")
	if err := os.WriteFile(modPath, []byte("Bogus: 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := FromYaml(modPath, yamlTestCtx{srcBaseDir: dir}); err == nil {
		t.Error("expected error for unrecognized module option")
	}
}

func TestFromYamlRejectsBadAlignment(t *testing.T) {
	dir := t.TempDir()
	modPath := filepath.Join(dir, "mymodule.yaml")
	if err := os.WriteFile(modPath, []byte("Alignments:\n  text: 3\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := FromYaml(modPath, yamlTestCtx{srcBaseDir: dir}); err == nil {
		t.Error("expected error for non-power-of-two alignment")
	}
}
