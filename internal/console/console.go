// Package console packages a CafeLoader console-target build's output
// files: Addr.bin (resolved text/data anchors), Code.bin (raw .text),
// Data.bin (the rodata/data image), and Patches.hax (the hook patch
// table, rendered by package patch).
package console

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/zboralski/clpc/internal/rplfmt"
)

// WriteAddr writes Addr.bin: two big-endian u32s, TextAddr then DataAddr.
func WriteAddr(dir string, textAddr, dataAddr uint32) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], textAddr)
	binary.BigEndian.PutUint32(buf[4:8], dataAddr)
	return os.WriteFile(filepath.Join(dir, "Addr.bin"), buf, 0o644)
}

// WriteCode writes Code.bin: the raw bytes of the linked .text section.
func WriteCode(dir string, text *rplfmt.Section) error {
	return os.WriteFile(filepath.Join(dir, "Code.bin"), text.Bytes, 0o644)
}

// WriteData writes Data.bin: a zero-filled buffer spanning dataAddr to the
// furthest end of rodata/data, with each section copied in at its
// address-relative offset. Writes nothing if neither section is present.
func WriteData(dir string, dataAddr uint32, rodata, data *rplfmt.Section) error {
	var dataEnd uint32
	for _, s := range []*rplfmt.Section{rodata, data} {
		if s == nil {
			continue
		}
		if e := s.Addr + s.Size; e > dataEnd {
			dataEnd = e
		}
	}
	if dataEnd == 0 {
		return nil
	}

	buf := make([]byte, dataEnd-dataAddr)
	for _, s := range []*rplfmt.Section{rodata, data} {
		if s == nil {
			continue
		}
		off := s.Addr - dataAddr
		copy(buf[off:off+uint32(len(s.Bytes))], s.Bytes)
	}
	return os.WriteFile(filepath.Join(dir, "Data.bin"), buf, 0o644)
}

// WritePatches writes Patches.hax from an already-rendered payload; see
// package patch's ApplyConsole.
func WritePatches(dir string, payload []byte) error {
	return os.WriteFile(filepath.Join(dir, "Patches.hax"), payload, 0o644)
}
