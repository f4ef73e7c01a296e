package cli

import (
	"fmt"

	"github.com/nomercy-sim/nomercy/internal/engine"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// faultsToValue renders a fault list as the canonical JSON array stored
// in repro.json, in whatever order the caller passes (callers that care
// about canonical ordering sort first via fault.Less).
func faultsToValue(faults []fault.Fault) jsonval.Array {
	arr := make(jsonval.Array, len(faults))
	for i, f := range faults {
		obj := jsonval.Object{
			"kind": jsonval.String(f.Kind.String()),
			"step": jsonval.Number(float64(f.Step)),
		}
		if f.Kind == fault.KindDelay {
			obj["resource"] = jsonval.String(f.Resource)
			obj["duration"] = jsonval.Number(float64(f.Duration))
		}
		arr[i] = obj
	}
	return arr
}

// faultsFromValue parses a fault list back out of a repro.json document.
func faultsFromValue(v jsonval.Value) ([]fault.Fault, error) {
	arr, ok := v.(jsonval.Array)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("cli: fault_schedule must be an array")
	}
	out := make([]fault.Fault, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(jsonval.Object)
		if !ok {
			return nil, fmt.Errorf("cli: fault entry must be an object")
		}
		kindStr, _ := obj["kind"].(jsonval.String)
		step, _ := obj["step"].(jsonval.Number)
		f := fault.Fault{Step: int64(step)}
		switch string(kindStr) {
		case "crash":
			f.Kind = fault.KindCrash
		case "io_error":
			f.Kind = fault.KindIOError
		case "delay":
			f.Kind = fault.KindDelay
			resource, _ := obj["resource"].(jsonval.String)
			dur, _ := obj["duration"].(jsonval.Number)
			f.Resource = string(resource)
			f.Duration = int64(dur)
		default:
			return nil, fmt.Errorf("cli: unknown fault kind %q", kindStr)
		}
		out = append(out, f)
	}
	return out, nil
}

// opsToValue renders a planned-operation list for repro.json.
func opsToValue(ops []engine.PlannedOp) jsonval.Array {
	arr := make(jsonval.Array, len(ops))
	for i, op := range ops {
		obj := jsonval.Object{"kind": jsonval.String(string(op.Kind))}
		if op.Op != nil {
			obj["op"] = op.Op
		}
		arr[i] = obj
	}
	return arr
}

// opsFromValue parses a planned-operation list back out of repro.json.
func opsFromValue(v jsonval.Value) ([]engine.PlannedOp, error) {
	arr, ok := v.(jsonval.Array)
	if !ok {
		return nil, fmt.Errorf("cli: ops must be an array")
	}
	out := make([]engine.PlannedOp, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(jsonval.Object)
		if !ok {
			return nil, fmt.Errorf("cli: op entry must be an object")
		}
		kindStr, _ := obj["kind"].(jsonval.String)
		out = append(out, engine.PlannedOp{Kind: protocol.CmdKind(kindStr), Op: obj["op"]})
	}
	return out, nil
}

// argvToValue/argvFromValue round-trip the adapter's invocation argv.
func argvToValue(argv []string) jsonval.Array {
	arr := make(jsonval.Array, len(argv))
	for i, a := range argv {
		arr[i] = jsonval.String(a)
	}
	return arr
}

func argvFromValue(v jsonval.Value) ([]string, error) {
	arr, ok := v.(jsonval.Array)
	if !ok {
		return nil, fmt.Errorf("cli: adapter_argv must be an array")
	}
	out := make([]string, len(arr))
	for i, item := range arr {
		s, ok := item.(jsonval.String)
		if !ok {
			return nil, fmt.Errorf("cli: adapter_argv elements must be strings")
		}
		out[i] = string(s)
	}
	return out, nil
}
