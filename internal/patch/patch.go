// Package patch applies a module's hooks onto spliced section bytes
// (Emulator targets) or renders them into a standalone patch-table payload
// (CafeLoader console targets).
package patch

import (
	"encoding/binary"
	"fmt"

	"github.com/zboralski/clpc/internal/hook"
	"github.com/zboralski/clpc/internal/splice"
)

// Resolver converts a hook's source address into the address space the
// patch is actually applied in, mirroring the external address-conversion
// map's resolve() method. A nil Resolver leaves addresses unchanged.
type Resolver func(addr uint32) (uint32, error)

func resolve(r Resolver, addr uint32) (uint32, error) {
	if r == nil {
		return addr, nil
	}
	return r(addr)
}

// ApplyEmulator overlays every hook's patch bytes directly onto the
// spliced section bytes named by entries, removing any relocation whose
// offset falls inside the patched range. A patch at an unknown region, a
// patch into .bss, or a patch exceeding its section's range is skipped
// with a warn() call rather than aborting the build, matching the
// original tool's per-patch diagnostics.
func ApplyEmulator(hooks []hook.Hook, symbols map[string]uint32, r Resolver, entries []splice.EntryRange, warn func(string)) error {
	for _, h := range hooks {
		for _, addr := range h.Addresses() {
			resolved, err := resolve(r, addr)
			if err != nil {
				return fmt.Errorf("patch: resolving address 0x%08X: %w", addr, err)
			}

			data, err := h.Bytes(resolved, symbols)
			if err != nil {
				return fmt.Errorf("patch: building patch data at 0x%08X: %w", resolved, err)
			}
			end := resolved + uint32(len(data))

			entry := findEntry(entries, resolved)
			if entry == nil {
				warn(fmt.Sprintf("patch at unknown region, skipping patch at address: 0x%08X", resolved))
				continue
			}
			if entry.Kind == splice.KindBss {
				warn(fmt.Sprintf("patching .bss is not possible, skipping patch at address: 0x%08X", resolved))
				continue
			}
			if end > entry.Section.Addr+entry.Section.Size {
				warn(fmt.Sprintf("patch exceeds section range, skipping patch at address: 0x%08X", resolved))
				continue
			}

			if entry.Rela != nil {
				kept := entry.Rela.Relas[:0]
				for _, rel := range entry.Rela.Relas {
					if rel.Offset >= resolved && rel.Offset < end {
						continue
					}
					kept = append(kept, rel)
				}
				entry.Rela.Relas = kept
			}

			offset := resolved - entry.Section.Addr
			copy(entry.Section.Bytes[offset:offset+uint32(len(data))], data)
		}
	}
	return nil
}

func findEntry(entries []splice.EntryRange, addr uint32) *splice.EntryRange {
	for i := range entries {
		e := &entries[i]
		if addr >= e.Section.Addr && addr < e.Section.Addr+e.Section.Size {
			return e
		}
	}
	return nil
}

// ApplyConsole renders the Patches.hax payload: a big-endian u16 patch
// count, followed per hook address by a u16 length, a u32 resolved
// address, and the raw patch bytes.
func ApplyConsole(hooks []hook.Hook, symbols map[string]uint32, r Resolver) ([]byte, error) {
	count := 0
	for _, h := range hooks {
		count += len(h.Addresses())
	}

	buf := make([]byte, 2, 2+count*6)
	binary.BigEndian.PutUint16(buf, uint16(count))

	for _, h := range hooks {
		for _, addr := range h.Addresses() {
			resolved, err := resolve(r, addr)
			if err != nil {
				return nil, fmt.Errorf("patch: resolving address 0x%08X: %w", addr, err)
			}
			data, err := h.Bytes(resolved, symbols)
			if err != nil {
				return nil, fmt.Errorf("patch: building patch data at 0x%08X: %w", resolved, err)
			}

			var hdr [6]byte
			binary.BigEndian.PutUint16(hdr[0:2], uint16(len(data)))
			binary.BigEndian.PutUint32(hdr[2:6], resolved)
			buf = append(buf, hdr[:]...)
			buf = append(buf, data...)
		}
	}
	return buf, nil
}
