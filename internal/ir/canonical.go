package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON.
// This is the only serialization used for revision content hashes.
//
// Differences from json.Marshal:
//  1. object keys sorted by UTF-16 code units
//  2. no HTML escaping
//  3. strings are NFC normalized
//  4. floats are rejected
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil, IRNull:
		buf.WriteString("null")
	case IRString:
		return writeCanonicalString(buf, string(val))
	case string:
		return writeCanonicalString(buf, val)
	case IRInt:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case IRBool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case IRArray:
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
	case IRObject:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case []any, map[string]any:
		converted, err := FromAny(val)
		if err != nil {
			return err
		}
		return writeCanonical(buf, converted)
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes an NFC-normalized JSON string. Only control
// characters, quote and backslash are escaped; U+2028/U+2029 stay literal.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))

	// encoding/json always escapes U+2028 and U+2029; a literal backslash in
	// the input is emitted as \\ so an escape here is preceded by an even
	// number of backslashes.
	for i := 0; i < len(out); i++ {
		if out[i] == '\\' && i+5 < len(out) && out[i+1] == 'u' &&
			out[i+2] == '2' && out[i+3] == '0' && out[i+4] == '2' &&
			(out[i+5] == '8' || out[i+5] == '9') && precedingBackslashes(out, i)%2 == 0 {
			if out[i+5] == '8' {
				buf.WriteString("\u2028")
			} else {
				buf.WriteString("\u2029")
			}
			i += 5
			continue
		}
		buf.WriteByte(out[i])
	}
	return nil
}

func precedingBackslashes(data []byte, i int) int {
	n := 0
	for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
		n++
	}
	return n
}
