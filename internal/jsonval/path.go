package jsonval

import (
	"fmt"
	"strings"
)

// Path is a parsed dot-segmented path into an Object/Array tree. A segment
// is either a literal object key, "*" (wildcard over an object's sorted
// keys), or "[*]" (wildcard over an array's elements in natural order).
type Path struct {
	Segments []string
	raw      string
}

// ParsePath splits a path string on '.' boundaries. "[*]" may appear fused
// to the preceding segment (e.g. "sessions[*]") or standalone; both forms
// resolve identically. No leading '$', filters, or parent axis are
// supported.
func ParsePath(raw string) Path {
	if raw == "" {
		return Path{raw: raw}
	}
	var segs []string
	for _, part := range strings.Split(raw, ".") {
		if idx := strings.Index(part, "[*]"); idx >= 0 {
			if idx > 0 {
				segs = append(segs, part[:idx])
			}
			segs = append(segs, "[*]")
			continue
		}
		segs = append(segs, part)
	}
	return Path{Segments: segs, raw: raw}
}

func (p Path) String() string { return p.raw }

// Resolve walks root along p and returns every matching leaf value, in a
// deterministic order: lexicographic key order for "*" over objects,
// natural order for "[*]" over arrays.
func Resolve(root Value, p Path) ([]Value, error) {
	results := []Value{root}
	for _, seg := range p.Segments {
		var next []Value
		for _, cur := range results {
			vs, err := resolveSegment(cur, seg)
			if err != nil {
				return nil, err
			}
			next = append(next, vs...)
		}
		results = next
	}
	return results, nil
}

// ResolveWithPaths behaves like Resolve but additionally returns the
// concrete dotted path for each resolved value (e.g. "balances.bob" for
// the "bob" match of "balances.*"), used to format deterministic failure
// messages that name the offending element.
func ResolveWithPaths(root Value, p Path) ([]Value, []string, error) {
	type entry struct {
		val  Value
		path string
	}
	results := []entry{{val: root, path: ""}}
	for _, seg := range p.Segments {
		var next []entry
		for _, cur := range results {
			vs, paths, err := resolveSegmentWithPaths(cur.val, seg)
			if err != nil {
				return nil, nil, err
			}
			for i, v := range vs {
				np := cur.path
				if np == "" {
					np = paths[i]
				} else if paths[i] != "" {
					np = np + "." + paths[i]
				}
				next = append(next, entry{val: v, path: np})
			}
		}
		results = next
	}
	vals := make([]Value, len(results))
	paths := make([]string, len(results))
	for i, e := range results {
		vals[i] = e.val
		paths[i] = e.path
	}
	return vals, paths, nil
}

func resolveSegmentWithPaths(cur Value, seg string) ([]Value, []string, error) {
	switch seg {
	case "*":
		obj, ok := cur.(Object)
		if !ok {
			return nil, nil, nil
		}
		keys := obj.SortedKeys()
		vals := make([]Value, 0, len(keys))
		paths := make([]string, 0, len(keys))
		for _, k := range keys {
			vals = append(vals, obj[k])
			paths = append(paths, k)
		}
		return vals, paths, nil
	case "[*]":
		arr, ok := cur.(Array)
		if !ok {
			return nil, nil, nil
		}
		paths := make([]string, len(arr))
		for i := range arr {
			paths[i] = fmt.Sprintf("[%d]", i)
		}
		return append([]Value(nil), arr...), paths, nil
	default:
		obj, ok := cur.(Object)
		if !ok {
			return nil, nil, nil
		}
		v, ok := obj[seg]
		if !ok {
			return nil, nil, nil
		}
		return []Value{v}, []string{seg}, nil
	}
}

func resolveSegment(cur Value, seg string) ([]Value, error) {
	switch seg {
	case "*":
		obj, ok := cur.(Object)
		if !ok {
			return nil, nil
		}
		keys := obj.SortedKeys()
		out := make([]Value, 0, len(keys))
		for _, k := range keys {
			out = append(out, obj[k])
		}
		return out, nil
	case "[*]":
		arr, ok := cur.(Array)
		if !ok {
			return nil, nil
		}
		return append([]Value(nil), arr...), nil
	default:
		obj, ok := cur.(Object)
		if !ok {
			return nil, nil
		}
		v, ok := obj[seg]
		if !ok {
			return nil, nil
		}
		return []Value{v}, nil
	}
}
