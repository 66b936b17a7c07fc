// Package module models a compiled-source module: its three ordered file
// lists and its ordered hook list.
package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zboralski/clpc/internal/hook"
	"github.com/zboralski/clpc/internal/model"
)

// FileClass indexes Module.Files.
type FileClass int

const (
	ClassC FileClass = iota
	ClassCPP
	ClassAsm
)

// Module is one compiled-source unit: three ordered file lists (C, C++,
// assembly) plus an ordered list of hooks to apply once it's linked in.
type Module struct {
	Path  string
	Files [3][]string // indexed by FileClass
	Hooks []hook.Hook

	// SectionAlign holds per-section alignment overrides keyed by
	// "text"/"rodata"/"data"/"bss"; a class absent here uses the
	// project-wide minimum.
	SectionAlign map[string]uint32
}

// Context is the subset of project-level services a module decode needs:
// variable-substituted string processing and the source base directory.
// Implemented by *project.Project; kept as a local interface so this
// package never imports project (project imports this one).
type Context interface {
	ProcessString(fieldName, raw string) (string, error)
	SrcBaseDir() string
}

// New returns an empty module rooted at path (made absolute).
func New(path string) (*Module, error) {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		path = abs
	}
	return &Module{Path: path}, nil
}

var classKeys = [3]string{"C", "C++", "Assembly"}

// ReadFileList resolves one of the three file-class lists from a decoded
// YAML list value: plain paths are used as given (resolved against
// ctx.SrcBaseDir unless already absolute); "*.ext" scans one directory
// non-recursively; "**.ext" scans recursively.
func (m *Module) ReadFileList(class FileClass, raw []any, ctx Context) error {
	fieldName := fmt.Sprintf("%q Files List", classKeys[class])

	files := make(map[string]struct{})
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return fmt.Errorf("module: in %s, expected a string file path, got %T", fieldName, item)
		}
		filePath, err := ctx.ProcessString(fieldName, s)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(filePath) {
			base := ctx.SrcBaseDir()
			if base == "" {
				base = m.Path
			}
			filePath = filepath.Join(base, filePath)
		}
		filePath = filepath.Clean(filePath)

		dir, name := filepath.Split(filePath)
		switch {
		case strings.HasPrefix(name, "**."):
			ext := name[2:]
			matches, err := recursiveGlob(dir, ext)
			if err != nil {
				return fmt.Errorf("module: in %s, recursive scan failed: %w", fieldName, err)
			}
			for _, mm := range matches {
				files[mm] = struct{}{}
			}
		case strings.HasPrefix(name, "*."):
			ext := name[1:]
			matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
			if err != nil {
				return fmt.Errorf("module: in %s, scan failed: %w", fieldName, err)
			}
			for _, mm := range matches {
				if fi, statErr := os.Stat(mm); statErr == nil && !fi.IsDir() {
					files[filepath.Clean(mm)] = struct{}{}
				}
			}
		default:
			if fi, statErr := os.Stat(filePath); statErr != nil || fi.IsDir() {
				return fmt.Errorf("module: in %s, file not found: %q (resolved to %q)", fieldName, s, filePath)
			}
			files[filePath] = struct{}{}
		}
	}

	out := make([]string, 0, len(files))
	for f := range files {
		out = append(out, f)
	}
	m.Files[class] = out
	return nil
}

func recursiveGlob(root, ext string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ext) {
			out = append(out, filepath.Clean(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
