package module

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zboralski/clpc/internal/binutil"
	"github.com/zboralski/clpc/internal/hook"
)

var moduleOptions = map[string]bool{
	"Files":      true,
	"Hooks":      true,
	"Alignments": true,
}

var fileListKeys = map[string]bool{"C": true, "C++": true, "Assembly": true}

var alignmentKeys = map[string]bool{"text": true, "rodata": true, "data": true, "bss": true}

const maxSectionAlign = 0x2000

// FromYaml decodes one module document from file_path: its Files lists,
// its Hooks list, and its optional per-section alignment overrides.
func FromYaml(filePath string, ctx Context) (*Module, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("module: %w", err)
	}

	var obj map[string]any
	if err := yaml.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("module: unexpected file format for file %q: %w", filePath, err)
	}

	name := filepath.Base(filePath)
	name = name[:len(name)-len(filepath.Ext(name))]
	fieldName := fmt.Sprintf("Module %q", name)

	for k := range obj {
		if !moduleOptions[k] {
			return nil, fmt.Errorf("module: unrecognized option in %s: %q", fieldName, k)
		}
	}

	m, err := New(filepath.Dir(filePath))
	if err != nil {
		return nil, err
	}

	if raw, ok := obj["Files"]; ok && raw != nil {
		fileLists, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("module: in %s, expected \"Files\" to be a key-value mapping", fieldName)
		}
		for k := range fileLists {
			if !fileListKeys[k] {
				return nil, fmt.Errorf("module: unrecognized option in \"Files\" in %s: %q", fieldName, k)
			}
		}

		if err := readOptionalFileList(m, fileLists, "C", ClassC, ctx); err != nil {
			return nil, err
		}
		if err := readOptionalFileList(m, fileLists, "C++", ClassCPP, ctx); err != nil {
			return nil, err
		}
		if err := readOptionalFileList(m, fileLists, "Assembly", ClassAsm, ctx); err != nil {
			return nil, err
		}
	}

	if raw, ok := obj["Hooks"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("module: in %s, expected \"Hooks\" to be a list of key-value mappings", fieldName)
		}
		hooks := make([]hook.Hook, 0, len(list))
		for _, item := range list {
			hookObj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("module: in %s, expected \"Hooks\" to be a list of key-value mappings", fieldName)
			}
			h, err := DecodeHook(hookObj, fieldName)
			if err != nil {
				return nil, err
			}
			hooks = append(hooks, h)
		}
		m.Hooks = hooks
	}

	if raw, ok := obj["Alignments"]; ok && raw != nil {
		align, err := decodeAlignments(raw, fieldName)
		if err != nil {
			return nil, err
		}
		m.SectionAlign = align
	}

	return m, nil
}

func readOptionalFileList(m *Module, fileLists map[string]any, key string, class FileClass, ctx Context) error {
	raw, ok := fileLists[key]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("module: expected %q Files List to be a list of strings", key)
	}
	return m.ReadFileList(class, list, ctx)
}

func decodeAlignments(raw any, fieldName string) (map[string]uint32, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("module: in %s, expected \"Alignments\" to be a key-value mapping", fieldName)
	}
	out := make(map[string]uint32, len(m))
	for k, v := range m {
		if !alignmentKeys[k] {
			return nil, fmt.Errorf("module: unrecognized section in %s \"Alignments\": %q", fieldName, k)
		}
		n, ok := v.(int)
		if !ok || n <= 0 || n > maxSectionAlign || !binutil.IsPowerOfTwo(uint32(n)) {
			return nil, fmt.Errorf("module: in %s, \"Alignments\".%s must be a power of two no greater than 0x%X, got %v", fieldName, k, maxSectionAlign, v)
		}
		out[k] = uint32(n)
	}
	return out, nil
}
