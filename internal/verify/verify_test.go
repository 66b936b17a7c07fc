package verify

import (
	"testing"

	"github.com/zboralski/clpc/internal/hook"
)

func TestCheckBranchLandsOnTarget(t *testing.T) {
	h := &hook.BranchHook{Base: hook.Base{Address: []uint32{0x02000000}}, Kind: hook.Branch, Func: "my_func"}
	symbols := map[string]uint32{"my_func": 0x02000100}

	res, err := Check(h, 0x02000000, symbols)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.OK {
		t.Errorf("expected OK, got %+v", res)
	}
	if res.PC != 0x02000100 {
		t.Errorf("expected PC 0x02000100, got 0x%08X", res.PC)
	}
}

func TestCheckBranchLinkSetsLR(t *testing.T) {
	h := &hook.BranchHook{Base: hook.Base{Address: []uint32{0x02000000}}, Kind: hook.BranchLink, Func: "my_func"}
	symbols := map[string]uint32{"my_func": 0x02000200}

	res, err := Check(h, 0x02000000, symbols)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.OK {
		t.Errorf("expected OK, got %+v", res)
	}
	if res.LR != 0x02000004 {
		t.Errorf("expected LR 0x02000004, got 0x%08X", res.LR)
	}
}

func TestCheckBranchRejectsUnknownSymbol(t *testing.T) {
	h := &hook.BranchHook{Base: hook.Base{Address: []uint32{0x02000000}}, Kind: hook.Branch, Func: "missing"}
	if _, err := Check(h, 0x02000000, map[string]uint32{}); err == nil {
		t.Error("expected error for an unresolved branch target")
	}
}

func TestCheckReturnLandsOnLR(t *testing.T) {
	h := &hook.ReturnHook{Base: hook.Base{Address: []uint32{0x02000000}}}

	res, err := Check(h, 0x02000000, nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.OK {
		t.Errorf("expected OK, got %+v", res)
	}
}

func TestCheckNOPAdvancesPCByCount(t *testing.T) {
	h := &hook.NOPHook{Base: hook.Base{Address: []uint32{0x02000000}}, Count: 3}

	res, err := Check(h, 0x02000000, nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.OK {
		t.Errorf("expected OK, got %+v", res)
	}
	if res.PC != 0x0200000C {
		t.Errorf("expected PC 0x0200000C, got 0x%08X", res.PC)
	}
}

func TestCheckRejectsUnsupportedHookType(t *testing.T) {
	h := &hook.FuncPtrHook{Base: hook.Base{Address: []uint32{0x02000000}}}
	if _, err := Check(h, 0x02000000, map[string]uint32{}); err == nil {
		t.Error("expected error for a hook type verify doesn't know how to check")
	}
}
