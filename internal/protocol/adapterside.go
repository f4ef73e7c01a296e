package protocol

import (
	"fmt"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// DecodeCommand parses one engine-issued command line, the adapter-side
// mirror of DecodeLine. Used by the bundled reference adapters
// (internal/adapterref) rather than the engine itself.
func DecodeCommand(line []byte) (*Command, error) {
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

	verVal, hasVer := obj["version"]
	if !hasVer {
		return nil, &InvalidError{Reason: "missing_version"}
	}
	verStr, ok := verVal.(jsonval.String)
	if !ok {
		return nil, &InvalidError{Reason: "version_not_string"}
	}

	cmdVal, hasCmd := obj["cmd"]
	if !hasCmd {
		return nil, &InvalidError{Reason: "missing_cmd"}
	}
	cmdStr, ok := cmdVal.(jsonval.String)
	if !ok {
		return nil, &InvalidError{Reason: "cmd_not_string"}
	}

	c := &Command{Version: string(verStr), Cmd: CmdKind(cmdStr)}
	switch c.Cmd {
	case CmdInit:
		c.Config = obj["config"]
	case CmdApply:
		c.Op = obj["op"]
	case CmdRestore:
		c.State = obj["state"]
	case CmdCrash, CmdObserve, CmdShutdown:
	default:
		return nil, &InvalidError{Reason: fmt.Sprintf("unknown_cmd:%s", cmdStr)}
	}
	return c, nil
}

// EncodeResponse serializes a Response with stable key order (version,
// then ok/error/observation and their dependents), the adapter-side
// mirror of EncodeLine.
func EncodeResponse(r Response) ([]byte, error) {
	obj := jsonval.Object{"version": jsonval.String(r.Version)}
	order := []string{"version"}

	switch {
	case r.Ok != nil:
		obj["ok"] = jsonval.Bool(*r.Ok)
		order = append(order, "ok")
		if r.State != nil {
			obj["state"] = r.State
			order = append(order, "state")
		}
	case r.Error != nil:
		obj["error"] = jsonval.String(*r.Error)
		order = append(order, "error")
		if r.Retryable {
			obj["retryable"] = jsonval.Bool(true)
			order = append(order, "retryable")
		}
		if r.Fatal {
			obj["fatal"] = jsonval.Bool(true)
			order = append(order, "fatal")
		}
	case r.Observation != nil:
		obj["observation"] = r.Observation
		order = append(order, "observation")
	}

	for k, v := range r.Extra {
		obj[k] = v
	}

	body, err := marshalStable(obj, order)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode response: %w", err)
	}
	if len(body) > MaxLineBytes {
		return nil, fmt.Errorf("protocol: encoded response exceeds %d bytes", MaxLineBytes)
	}
	return append(body, '\n'), nil
}
