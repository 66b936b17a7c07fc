package module

import (
	"fmt"

	"github.com/zboralski/clpc/internal/hook"
)

// DecodeHook builds one hook.Hook from a decoded YAML mapping, dispatching
// on its "type" key to patch/nop/return/branch/funcptr.
func DecodeHook(obj map[string]any, fieldName string) (hook.Hook, error) {
	typ, ok := obj["type"].(string)
	if !ok {
		return nil, fmt.Errorf("module: in %s, \"type\" is required and must be a string", fieldName)
	}

	addr, err := decodeAddresses(obj, fieldName)
	if err != nil {
		return nil, err
	}

	switch typ {
	case "patch":
		return decodePatchHook(obj, fieldName, addr)
	case "nop":
		return decodeNOPHook(obj, fieldName, addr)
	case "return":
		if err := checkObj(obj, fieldName, "Return Hook"); err != nil {
			return nil, err
		}
		return &hook.ReturnHook{Base: hook.Base{Address: addr}}, nil
	case "branch":
		return decodeBranchHook(obj, fieldName, addr)
	case "funcptr":
		return decodeFuncPtrHook(obj, fieldName, addr)
	default:
		return nil, fmt.Errorf("module: in %s, \"type\" %q is invalid", fieldName, typ)
	}
}

var baseOptions = map[string]bool{"type": true, "addr": true}

// checkObj rejects any key outside the base options plus the variant's
// own allowed keys, mirroring BasicHook.checkObj.
func checkObj(obj map[string]any, fieldName, hookKind string, extra ...string) error {
	allowed := map[string]bool{}
	for k := range baseOptions {
		allowed[k] = true
	}
	for _, k := range extra {
		allowed[k] = true
	}
	for k := range obj {
		if !allowed[k] {
			return fmt.Errorf("module: unrecognized option in %s %s: %q", fieldName, hookKind, k)
		}
	}
	if _, ok := obj["addr"]; !ok {
		return fmt.Errorf("module: %s %s address not specified", fieldName, hookKind)
	}
	return nil
}

func decodeAddresses(obj map[string]any, fieldName string) ([]uint32, error) {
	raw, ok := obj["addr"]
	if !ok {
		return nil, fmt.Errorf("module: in %s, address not specified", fieldName)
	}

	toAddr := func(v any) (uint32, bool) {
		switch n := v.(type) {
		case int:
			if n < 0 || n > 0xFFFFFFFF {
				return 0, false
			}
			return uint32(n), true
		case int64:
			if n < 0 || n > 0xFFFFFFFF {
				return 0, false
			}
			return uint32(n), true
		case uint64:
			if n > 0xFFFFFFFF {
				return 0, false
			}
			return uint32(n), true
		}
		return 0, false
	}

	if list, ok := raw.([]any); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("module: in %s, expected addr to be a non-empty list of unsigned 32-bit integers", fieldName)
		}
		out := make([]uint32, 0, len(list))
		for _, v := range list {
			a, ok := toAddr(v)
			if !ok {
				return nil, fmt.Errorf("module: in %s, expected addr entries to be unsigned 32-bit integers, got %v", fieldName, v)
			}
			out = append(out, a)
		}
		return out, nil
	}

	a, ok := toAddr(raw)
	if !ok {
		return nil, fmt.Errorf("module: in %s, expected addr to be a(n) (list of) unsigned 32-bit integer(s), got %v", fieldName, raw)
	}
	return []uint32{a}, nil
}

func decodeNOPHook(obj map[string]any, fieldName string, addr []uint32) (hook.Hook, error) {
	if err := checkObj(obj, fieldName, "NOP Hook", "count"); err != nil {
		return nil, err
	}
	count := 1
	if raw, ok := obj["count"]; ok {
		n, ok := raw.(int)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("module: in %s, expected count to be a positive non-zero integer, got %v", fieldName, raw)
		}
		count = n
	}
	return &hook.NOPHook{Base: hook.Base{Address: addr}, Count: count}, nil
}

func decodeBranchHook(obj map[string]any, fieldName string, addr []uint32) (hook.Hook, error) {
	if err := checkObj(obj, fieldName, "Branch Hook", "instr", "func"); err != nil {
		return nil, err
	}
	instr, _ := obj["instr"].(string)
	kind, err := hook.ParseBranchKind(instr)
	if err != nil {
		return nil, fmt.Errorf("module: in %s Branch Hook: %w", fieldName, err)
	}
	fn, ok := obj["func"].(string)
	if !ok || fn == "" {
		return nil, fmt.Errorf("module: in %s, function symbol not specified", fieldName)
	}
	return &hook.BranchHook{Base: hook.Base{Address: addr}, Kind: kind, Func: fn}, nil
}

func decodeFuncPtrHook(obj map[string]any, fieldName string, addr []uint32) (hook.Hook, error) {
	if err := checkObj(obj, fieldName, "Function Pointer Hook", "func"); err != nil {
		return nil, err
	}
	fn, ok := obj["func"].(string)
	if !ok || fn == "" {
		return nil, fmt.Errorf("module: in %s, function symbol not specified", fieldName)
	}
	return &hook.FuncPtrHook{Base: hook.Base{Address: addr}, Func: fn}, nil
}

func decodePatchHook(obj map[string]any, fieldName string, addr []uint32) (hook.Hook, error) {
	if err := checkObj(obj, fieldName, "Patch Hook", "data", "datatype", "encoding"); err != nil {
		return nil, err
	}
	rawData, hasData := obj["data"]
	if !hasData {
		return nil, fmt.Errorf("module: in %s, data not specified", fieldName)
	}

	typ := hook.Raw
	if dt, ok := obj["datatype"].(string); ok {
		t, err := hook.ParseType(dt)
		if err != nil {
			return nil, fmt.Errorf("module: in %s Patch Hook: %w", fieldName, err)
		}
		typ = t
	}
	base := typ.Base()

	if base == hook.Raw {
		s, ok := rawData.(string)
		if !ok {
			return nil, fmt.Errorf("module: in %s, expected \"data\" to be a hex string for a raw patch", fieldName)
		}
		return &hook.PatchHook{Base: hook.Base{Address: addr}, Type: hook.Raw, RawHex: s}, nil
	}

	align := base.Alignment()
	for _, a := range addr {
		if a&(align-1) != 0 {
			return nil, fmt.Errorf("module: in %s, addr 0x%08X must be aligned by %d", fieldName, a, align)
		}
	}

	var elements []any
	if typ.IsArray() {
		list, ok := rawData.([]any)
		if !ok || len(list) == 0 {
			return nil, fmt.Errorf("module: in %s, expected \"data\" to be a non-empty list for an array patch", fieldName)
		}
		elements = list
	} else {
		elements = []any{rawData}
	}

	encName, _ := obj["encoding"].(string)
	var enc hook.Encoding
	if encName != "" {
		e, err := hook.ParseEncoding(encName)
		if err != nil {
			return nil, fmt.Errorf("module: in %s Patch Hook: %w", fieldName, err)
		}
		allowed := false
		for _, a := range base.AllowedEncodings() {
			if a == e {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("module: in %s, unexpected encoding %q for this data type", fieldName, encName)
		}
		enc = e
	} else if def, ok := base.DefaultEncoding(); ok {
		enc = def
	}

	values, err := coercePatchValues(base, elements, enc, fieldName)
	if err != nil {
		return nil, err
	}

	return &hook.PatchHook{
		Base:     hook.Base{Address: addr},
		Type:     typ,
		Encoding: enc,
		Data:     values,
	}, nil
}
