package protocol

import (
	"fmt"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// InvalidError reports a decode-time protocol_invalid violation.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string { return "protocol: invalid: " + e.Reason }

// DecodeLine parses one adapter response line. It never applies the
// observation size/depth limits itself — those
// are the caller's responsibility once it knows the line carries an
// observation (see internal/engine, which calls jsonval.CheckLimits with
// jsonval.ObservationLimits on the decoded Observation value).
func DecodeLine(line []byte) (*Response, error) {
	if len(line) > MaxLineBytes {
		return nil, &InvalidError{Reason: "line_too_long"}
	}
	val, err := jsonval.Parse(line, jsonval.Limits{})
	if err != nil {
		return nil, &InvalidError{Reason: "malformed_json"}
	}
	obj, ok := val.(jsonval.Object)
	if !ok {
		return nil, &InvalidError{Reason: "not_an_object"}
	}

	resp := &Response{Extra: jsonval.Object{}}

	verVal, hasVer := obj["version"]
	if !hasVer {
		return nil, &InvalidError{Reason: "missing_version"}
	}
	verStr, ok := verVal.(jsonval.String)
	if !ok {
		return nil, &InvalidError{Reason: "version_not_string"}
	}
	resp.Version = string(verStr)

	primaryCount := 0

	if okVal, present := obj["ok"]; present {
		b, ok := okVal.(jsonval.Bool)
		if !ok {
			return nil, &InvalidError{Reason: "ok_not_bool"}
		}
		bb := bool(b)
		resp.Ok = &bb
		primaryCount++
		if st, present := obj["state"]; present {
			resp.State = st
		}
	}

	if errVal, present := obj["error"]; present {
		s, ok := errVal.(jsonval.String)
		if !ok {
			return nil, &InvalidError{Reason: "error_not_string"}
		}
		str := string(s)
		resp.Error = &str
		primaryCount++
		if rv, present := obj["retryable"]; present {
			b, ok := rv.(jsonval.Bool)
			if !ok {
				return nil, &InvalidError{Reason: "retryable_not_bool"}
			}
			resp.Retryable = bool(b)
		}
		if fv, present := obj["fatal"]; present {
			b, ok := fv.(jsonval.Bool)
			if !ok {
				return nil, &InvalidError{Reason: "fatal_not_bool"}
			}
			resp.Fatal = bool(b)
		}
	}

	if obsVal, present := obj["observation"]; present {
		resp.Observation = obsVal
		primaryCount++
	}

	if primaryCount != 1 {
		return nil, &InvalidError{Reason: "outcome_key_count"}
	}

	for _, k := range obj.SortedKeys() {
		switch k {
		case "version", "ok", "state", "error", "retryable", "fatal", "observation":
			continue
		default:
			resp.Extra[k] = obj[k]
		}
	}

	return resp, nil
}

// ExpectVersion checks a decoded response's version against the
// negotiated session version, returning the version_mismatch outcome
// when they differ.
func ExpectVersion(resp *Response, want string) error {
	if resp.Version != want {
		return fmt.Errorf("protocol: version_mismatch: got %q want %q", resp.Version, want)
	}
	return nil
}
