package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical encodes v as RFC 8785 canonical JSON: sorted object
// keys (UTF-16 code unit order), NFC-normalized strings, no insignificant
// whitespace, and shortest round-trip double formatting for numbers. It is
// the only encoder used for hashing, trace events, and artifact files.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case Null:
		buf.WriteString("null")
		return nil
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case Number:
		return writeCanonicalNumber(buf, float64(val))
	case String:
		return writeCanonicalString(buf, string(val))
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case Object:
		buf.WriteByte('{')
		keys := val.SortedKeys()
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("jsonval: unknown value type %T", v)
	}
}

// writeCanonicalNumber formats a double using the shortest decimal
// representation that round-trips exactly, per RFC 8785 §3.2.2.3. NaN and
// Infinity are rejected by callers before encoding is ever attempted
// (predicate load-time validation, observation limits); encoding them
// here would silently break determinism.
func writeCanonicalNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("jsonval: cannot encode non-finite number %v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

// writeCanonicalString NFC-normalizes s and emits it through encoding/json
// with HTML escaping disabled; trailing-newline stripping and the JCS
//  /  passthrough rule are applied identically.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var enc bytes.Buffer
	encoder := json.NewEncoder(&enc)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(normalized); err != nil {
		return err
	}

	out := bytes.TrimSuffix(enc.Bytes(), []byte("\n"))
	out = unescapeLineSeparators(out)
	buf.Write(out)
	return nil
}

// unescapeLineSeparators reverses Go's escaping of U+2028/U+2029, which
// RFC 8785 requires to be emitted literally, not as  / . Escaped
// backslashes immediately preceding the sequence are counted to avoid
// mistaking "\\u2028" (a literal backslash followed by the text "u2028")
// for the actual escape sequence.
func unescapeLineSeparators(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] == '\\' && i+5 < len(in) && in[i+1] == 'u' &&
			(string(in[i+2:i+6]) == "2028" || string(in[i+2:i+6]) == "2029") {
			backslashes := 0
			for j := i - 1; j >= 0 && in[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if string(in[i+2:i+6]) == "2028" {
					out = append(out, 0xE2, 0x80, 0xA8)
				} else {
					out = append(out, 0xE2, 0x80, 0xA9)
				}
				i += 5
				continue
			}
		}
		out = append(out, in[i])
	}
	return out
}
