// Package verify provides an opt-in post-patch sanity check: it executes a
// hook's patched word(s) in a scratch PPC big-endian Unicorn instance and
// asserts the resulting control-flow state matches what the hook's
// semantics promise. It never touches the real build artifact; it only
// checks that the bytes a hook produces do what its type claims they do.
package verify

import (
	"fmt"
	"strings"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/zboralski/clpc/internal/hook"
)

const (
	pageMask = 0xFFF
	mapSize  = 0x10000
	sentinel = 0xDEADBEE0 // an address we never map, for blr-lands-on-LR checks
)

// Result reports the outcome of one Check call.
type Result struct {
	OK     bool
	PC     uint32
	LR     uint32
	Detail string // empty when OK, otherwise the mismatch found
}

// Check materialises h's patch bytes at addr and runs them in a scratch
// emulator, returning whether the resulting machine state matches the
// hook's documented semantics.
func Check(h hook.Hook, addr uint32, symbols map[string]uint32) (*Result, error) {
	code, err := h.Bytes(addr, symbols)
	if err != nil {
		return nil, fmt.Errorf("verify: materialising hook bytes: %w", err)
	}

	switch v := h.(type) {
	case *hook.BranchHook:
		target, ok := symbols[v.Func]
		if !ok {
			target, ok = symbols[strings.TrimSpace(v.Func)]
		}
		if !ok {
			return nil, fmt.Errorf("verify: branch target %q not in symbol table", v.Func)
		}
		want := step{pc: target}
		if v.Kind == hook.BranchLink {
			want.lr = addr + 4
			want.checkLR = true
		}
		return run(addr, code, 0, want)

	case *hook.ReturnHook:
		return run(addr, code, sentinel, step{pc: sentinel, lr: sentinel, checkLR: true})

	case *hook.NOPHook:
		return run(addr, code, 0, step{pc: addr + uint32(v.Count)*4})

	default:
		return nil, fmt.Errorf("verify: unsupported hook type %T", h)
	}
}

// step is what one Check invocation expects of the machine state after the
// patched instruction(s) execute.
type step struct {
	pc      uint32
	lr      uint32
	checkLR bool
}

// run maps a scratch page around addr, writes code there, optionally
// presets LR, and executes from addr. The mapped region is 64 KiB from
// addr's page, so only the preset LR sentinel is always unmapped; a NOP run's
// end or a nearby branch target lies inside the region and reads as zero
// words. Execution runs until Unicorn stops on a fault, and PC/LR are read
// at that point.
func run(addr uint32, code []byte, presetLR uint32, want step) (*Result, error) {
	mu, err := uc.NewUnicorn(uc.ARCH_PPC, uc.MODE_PPC32|uc.MODE_BIG_ENDIAN)
	if err != nil {
		return nil, fmt.Errorf("verify: create unicorn: %w", err)
	}
	defer mu.Close()

	base := uint64(addr) &^ pageMask
	if err := mu.MemMap(base, mapSize); err != nil {
		return nil, fmt.Errorf("verify: map scratch region: %w", err)
	}
	if err := mu.MemWrite(uint64(addr), code); err != nil {
		return nil, fmt.Errorf("verify: write patch bytes: %w", err)
	}
	if presetLR != 0 {
		if err := mu.RegWrite(uc.PPC_REG_LR, uint64(presetLR)); err != nil {
			return nil, fmt.Errorf("verify: preset LR: %w", err)
		}
	}

	// Best-effort: execution ends in a fault, so Start's error is ignored.
	// The registers below are what actually gets asserted.
	_ = mu.Start(uint64(addr), 0)

	pc, err := mu.RegRead(uc.PPC_REG_PC)
	if err != nil {
		return nil, fmt.Errorf("verify: reading PC: %w", err)
	}
	lr, err := mu.RegRead(uc.PPC_REG_LR)
	if err != nil {
		return nil, fmt.Errorf("verify: reading LR: %w", err)
	}

	res := &Result{PC: uint32(pc), LR: uint32(lr)}
	if uint32(pc) != want.pc {
		res.Detail = fmt.Sprintf("expected PC 0x%08X, landed at 0x%08X", want.pc, pc)
		return res, nil
	}
	if want.checkLR && uint32(lr) != want.lr {
		res.Detail = fmt.Sprintf("expected LR 0x%08X, got 0x%08X", want.lr, lr)
		return res, nil
	}
	res.OK = true
	return res, nil
}
