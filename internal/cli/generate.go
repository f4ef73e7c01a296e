package cli

import (
	"fmt"
	"math/rand"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/manifest"
)

// buildCatalog turns a manifest's op_catalog into the generator functions
// RandomPlan draws from. Each op's argument JSON schema is interpreted
// loosely (only "type": "object"/"string"/"number"/"boolean" properties
// are honored) — nomercy generates exploratory traffic, not a
// schema-conformance fuzzer, so best-effort primitive filling is
// sufficient and keeps the generator a pure function of its rand source.
func buildCatalog(m *manifest.Manifest) []func(r *rand.Rand) jsonval.Value {
	names := m.OpCatalog.SortedKeys()
	catalog := make([]func(r *rand.Rand) jsonval.Value, 0, len(names))
	for _, name := range names {
		schema := m.OpCatalog[name]
		catalog = append(catalog, func(r *rand.Rand) jsonval.Value {
			obj := jsonval.Object{"kind": jsonval.String(name)}
			for k, v := range fillProperties(schema, r) {
				obj[k] = v
			}
			return obj
		})
	}
	if len(catalog) == 0 {
		// No catalog entries to drive: fall back to a single no-argument
		// "noop" op so the plan never stalls with an empty generator.
		catalog = append(catalog, func(r *rand.Rand) jsonval.Value {
			return jsonval.Object{"kind": jsonval.String("noop")}
		})
	}
	return catalog
}

func fillProperties(schema jsonval.Value, r *rand.Rand) jsonval.Object {
	out := jsonval.Object{}
	obj, ok := schema.(jsonval.Object)
	if !ok {
		return out
	}
	props, ok := obj["properties"].(jsonval.Object)
	if !ok {
		return out
	}
	for _, key := range props.SortedKeys() {
		propSchema, ok := props[key].(jsonval.Object)
		if !ok {
			continue
		}
		typ, _ := propSchema["type"].(jsonval.String)
		switch string(typ) {
		case "string":
			out[key] = jsonval.String(fmt.Sprintf("v%d", r.Intn(1000)))
		case "number", "integer":
			out[key] = jsonval.Number(float64(r.Intn(1000)))
		case "boolean":
			out[key] = jsonval.Bool(r.Intn(2) == 0)
		}
	}
	return out
}
