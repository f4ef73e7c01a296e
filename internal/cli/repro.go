package cli

import (
	"fmt"
	"os"

	"github.com/nomercy-sim/nomercy/internal/engine"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// reproDoc is a parsed repro.json, the self-contained input `replay` and
// `shrink` both need: neither command resolves a <system> directory, so
// everything they replay against travels inside the artifact itself —
// neither command accepts --seed.
type reproDoc struct {
	EngineVersion       string
	AdapterManifestHash string
	InvariantFileHash   string
	Seed                uint64
	Faults              *fault.Schedule
	Ops                 []engine.PlannedOp
	AdapterArgv         []string
	FailingInvariant    string
}

func loadRepro(path string) (*reproDoc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: read %s: %w", path, err)
	}
	v, err := jsonval.Parse(raw, jsonval.Limits{})
	if err != nil {
		return nil, fmt.Errorf("cli: parse %s: %w", path, err)
	}
	obj, ok := v.(jsonval.Object)
	if !ok {
		return nil, fmt.Errorf("cli: %s: root must be an object", path)
	}

	var doc reproDoc
	if s, ok := obj["engine_version"].(jsonval.String); ok {
		doc.EngineVersion = string(s)
	}
	if s, ok := obj["adapter_manifest_hash"].(jsonval.String); ok {
		doc.AdapterManifestHash = string(s)
	}
	if s, ok := obj["invariant_file_hash"].(jsonval.String); ok {
		doc.InvariantFileHash = string(s)
	}
	if n, ok := obj["seed"].(jsonval.Number); ok {
		doc.Seed = uint64(n)
	}

	rawFaults, err := faultsFromValue(obj["fault_schedule"])
	if err != nil {
		return nil, fmt.Errorf("cli: %s: %w", path, err)
	}
	schedule, err := fault.Normalize(rawFaults)
	if err != nil {
		return nil, fmt.Errorf("cli: %s: normalize fault_schedule: %w", path, err)
	}
	doc.Faults = schedule

	ops, err := opsFromValue(obj["ops"])
	if err != nil {
		return nil, fmt.Errorf("cli: %s: %w", path, err)
	}
	doc.Ops = ops

	argv, err := argvFromValue(obj["adapter_argv"])
	if err != nil {
		return nil, fmt.Errorf("cli: %s: %w", path, err)
	}
	doc.AdapterArgv = argv

	if fi, ok := obj["failing_invariant"].(jsonval.Object); ok {
		if name, ok := fi["name"].(jsonval.String); ok {
			doc.FailingInvariant = string(name)
		}
	}

	return &doc, nil
}

// resourceMapFromFaults derives a conservative ResourceMap directly from a
// concrete fault schedule, for entry points (`replay`, `shrink`) that have
// no adapter manifest on hand: every resource named by a `delay` fault is
// treated as touched by `apply`, mirroring app.go's manifest-driven
// resourceMap so a recorded delay still blocks issuance identically on
// replay.
func resourceMapFromFaults(faults []fault.Fault) fault.ResourceMap {
	seen := map[string]bool{}
	var resources []string
	for _, f := range faults {
		if f.Kind == fault.KindDelay && f.Resource != "" && !seen[f.Resource] {
			seen[f.Resource] = true
			resources = append(resources, f.Resource)
		}
	}
	if len(resources) == 0 {
		return fault.ResourceMap{}
	}
	return fault.ResourceMap{protocol.CmdApply: resources}
}
