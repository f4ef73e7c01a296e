package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Limits bounds the shape of a value accepted from an untrusted source.
// The zero value performs no bounding.
type Limits struct {
	MaxBytes    int // 0 = unbounded
	MaxDepth    int // 0 = unbounded
	MaxArrayLen int // 0 = unbounded
}

// ObservationLimits are the default bounds for observations: max 256
// KiB, max depth 8, arrays of at most 10,000 elements.
var ObservationLimits = Limits{
	MaxBytes:    256 * 1024,
	MaxDepth:    8,
	MaxArrayLen: 10_000,
}

// LimitError reports a violation of Limits, tagged with the reason used
// in fatal error surfacing (reason=observation_limit).
type LimitError struct {
	Reason string
}

func (e *LimitError) Error() string { return "jsonval: limit exceeded: " + e.Reason }

// Parse decodes raw JSON bytes into a Value tree, enforcing lim. Numbers
// are decoded via json.Number and stored as a float64 Number, so the
// integer/float distinction of the source text is not retained.
func Parse(data []byte, lim Limits) (Value, error) {
	if lim.MaxBytes > 0 && len(data) > lim.MaxBytes {
		return nil, &LimitError{Reason: "observation_limit"}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("jsonval: malformed json: %w", err)
	}
	return convert(raw, lim, 1)
}

func convert(v any, lim Limits, depth int) (Value, error) {
	if lim.MaxDepth > 0 && depth > lim.MaxDepth {
		return nil, &LimitError{Reason: "observation_limit"}
	}
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("jsonval: invalid number %q: %w", val, err)
		}
		return Number(f), nil
	case []any:
		if lim.MaxArrayLen > 0 && len(val) > lim.MaxArrayLen {
			return nil, &LimitError{Reason: "observation_limit"}
		}
		arr := make(Array, len(val))
		for i, e := range val {
			cv, err := convert(e, lim, depth+1)
			if err != nil {
				return nil, err
			}
			arr[i] = cv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, e := range val {
			cv, err := convert(e, lim, depth+1)
			if err != nil {
				return nil, err
			}
			obj[k] = cv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("jsonval: unsupported decoded type %T", v)
	}
}
