package jsonval

// CheckLimits validates an already-constructed Value tree against lim,
// used when a value arrives already decoded (e.g. an adapter response's
// "observation" field, decoded generically by the protocol codec before
// the engine knows it must obey observation-specific limits).
func CheckLimits(v Value, lim Limits) error {
	if lim.MaxBytes > 0 {
		b, err := MarshalCanonical(v)
		if err != nil {
			return err
		}
		if len(b) > lim.MaxBytes {
			return &LimitError{Reason: "observation_limit"}
		}
	}
	return checkDepthAndArrays(v, lim, 1)
}

func checkDepthAndArrays(v Value, lim Limits, depth int) error {
	if lim.MaxDepth > 0 && depth > lim.MaxDepth {
		return &LimitError{Reason: "observation_limit"}
	}
	switch val := v.(type) {
	case Array:
		if lim.MaxArrayLen > 0 && len(val) > lim.MaxArrayLen {
			return &LimitError{Reason: "observation_limit"}
		}
		for _, e := range val {
			if err := checkDepthAndArrays(e, lim, depth+1); err != nil {
				return err
			}
		}
	case Object:
		for _, k := range val.SortedKeys() {
			if err := checkDepthAndArrays(val[k], lim, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
