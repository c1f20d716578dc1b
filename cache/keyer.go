package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// UnsupportedSentinel is the canonical form of values that have no JSON
// representation (funcs, channels, complex numbers).
const UnsupportedSentinel = `"<unsupported>"`

// Keyer generates deterministic cache keys from tool invocation parameters.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Isolation: different scopes never produce the same key for the same tool and args.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates a cache key from scope, tool name and arguments.
	Key(scope, tool string, args any) string
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: cache:<tool>:<hash>
// where hash is the first 32 hex characters of
// SHA-256(scope + ":" + tool + ":" + Canonicalize(args)).
func (k *DefaultKeyer) Key(scope, tool string, args any) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{':'})
	h.Write([]byte(tool))
	h.Write([]byte{':'})
	h.Write([]byte(Canonicalize(args)))
	sum := h.Sum(nil)

	return "cache:" + tool + ":" + hex.EncodeToString(sum[:16])
}

// ToolPrefix returns the key prefix shared by every entry of a tool.
func ToolPrefix(tool string) string {
	return "cache:" + tool + ":"
}

// Canonicalize produces a deterministic JSON representation of v.
// Object keys are sorted at every depth; arrays keep their order.
// It never fails: values without a JSON form become UnsupportedSentinel.
func Canonicalize(v any) string {
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	return buf.String()
}

func writeCanonical(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case map[string]any:
		writeMap(buf, val)
	case []any:
		writeSlice(buf, val)
	case string:
		writeJSON(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case json.Number:
		writeNumber(buf, val)
	case float64:
		writeJSON(buf, val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		writeJSON(buf, val)
	case json.RawMessage:
		writeRaw(buf, val)
	case []byte:
		// Raw JSON documents are common for tool arguments.
		if json.Valid(val) {
			writeRaw(buf, val)
			return
		}
		writeJSON(buf, val)
	default:
		writeReflect(buf, v)
	}
}

func writeMap(buf *bytes.Buffer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSON(buf, k)
		buf.WriteByte(':')
		writeCanonical(buf, m[k])
	}
	buf.WriteByte('}')
}

func writeSlice(buf *bytes.Buffer, s []any) {
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeCanonical(buf, v)
	}
	buf.WriteByte(']')
}

// writeRaw decodes a JSON document and canonicalizes the decoded tree.
func writeRaw(buf *bytes.Buffer, raw []byte) {
	if len(bytes.TrimSpace(raw)) == 0 {
		buf.WriteString("null")
		return
	}
	decoded, ok := decode(raw)
	if !ok {
		buf.WriteString(UnsupportedSentinel)
		return
	}
	writeCanonical(buf, decoded)
}

// writeReflect normalizes typed structs, typed maps and typed slices through a
// JSON round trip so they canonicalize like their generic equivalents.
func writeReflect(buf *bytes.Buffer, v any) {
	if !representable(reflect.TypeOf(v)) {
		buf.WriteString(UnsupportedSentinel)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		buf.WriteString(UnsupportedSentinel)
		return
	}
	decoded, ok := decode(data)
	if !ok {
		buf.WriteString(UnsupportedSentinel)
		return
	}
	writeCanonical(buf, decoded)
}

func decode(data []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, false
	}
	return out, true
}

// writeNumber keeps integers verbatim and re-renders fractional numbers so
// 1.50 and 1.5 produce the same key.
func writeNumber(buf *bytes.Buffer, n json.Number) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		buf.WriteString(s)
		return
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		buf.WriteString(s)
		return
	}
	writeJSON(buf, f)
}

func writeJSON(buf *bytes.Buffer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		// NaN and Inf land here.
		buf.WriteString(UnsupportedSentinel)
		return
	}
	buf.Write(data)
}

// representable reports whether t's top-level kind has a JSON encoding.
// Nested unsupported fields surface as a json.Marshal error instead.
func representable(t reflect.Type) bool {
	if t == nil {
		return true
	}
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return false
	case reflect.Pointer:
		return representable(t.Elem())
	default:
		return true
	}
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
