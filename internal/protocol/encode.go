package protocol

import (
	"bytes"
	"fmt"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// payloadKey returns the cmd-dependent payload field name for kind, or ""
// if the command carries no payload.
func payloadKey(kind CmdKind) string {
	switch kind {
	case CmdInit:
		return "config"
	case CmdApply:
		return "op"
	case CmdRestore:
		return "state"
	default:
		return ""
	}
}

func payloadValue(c Command) jsonval.Value {
	switch c.Cmd {
	case CmdInit:
		return c.Config
	case CmdApply:
		return c.Op
	case CmdRestore:
		return c.State
	default:
		return nil
	}
}

// EncodeLine serializes a Command with stable key order (version, cmd,
// then the single payload key if present) and a trailing newline.
func EncodeLine(c Command) ([]byte, error) {
	obj := jsonval.Object{
		"version": jsonval.String(c.Version),
		"cmd":      jsonval.String(string(c.Cmd)),
	}
	if key := payloadKey(c.Cmd); key != "" {
		val := payloadValue(c)
		if val == nil {
			val = jsonval.Object{}
		}
		obj[key] = val
	}

	body, err := marshalStable(obj, []string{"version", "cmd", payloadKey(c.Cmd)})
	if err != nil {
		return nil, fmt.Errorf("protocol: encode command: %w", err)
	}
	if len(body) > MaxLineBytes {
		return nil, fmt.Errorf("protocol: encoded command exceeds %d bytes", MaxLineBytes)
	}
	return append(body, '\n'), nil
}

// marshalStable writes obj's keys in the given order (skipping empty
// names), falling back to canonical order for any remaining keys. This
// gives commands a stable field order without imposing full RFC 8785
// ordering on the wire (the wire format only requires version, cmd,
// payload ordering, not full canonicalization).
func marshalStable(obj jsonval.Object, order []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := map[string]bool{}
	first := true
	for _, k := range order {
		if k == "" {
			continue
		}
		v, ok := obj[k]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeKV(&buf, k, v); err != nil {
			return nil, err
		}
		written[k] = true
	}
	for _, k := range obj.SortedKeys() {
		if written[k] {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeKV(&buf, k, obj[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKV(buf *bytes.Buffer, k string, v jsonval.Value) error {
	kb, err := jsonval.MarshalCanonical(jsonval.String(k))
	if err != nil {
		return err
	}
	buf.Write(kb)
	buf.WriteByte(':')
	vb, err := jsonval.MarshalCanonical(v)
	if err != nil {
		return err
	}
	buf.Write(vb)
	return nil
}
