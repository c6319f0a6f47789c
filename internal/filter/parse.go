package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// member is one key/value pair of a JSON object, kept in source order.
type member struct {
	key   string
	value any
}

// object is a JSON object whose key order survives decoding.
type object []member

// Parse decodes a JSON filter and classifies every entry once.
// Object key order is preserved, so clauses are emitted in the order they were written.
//
// Only malformed JSON is an error. Shapes the compiler cannot use are dropped here:
// falsy field values, non-array groups and non-object group items.
func Parse(data []byte) (Expr, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := readValue(dec)
	if err != nil {
		return nil, fmt.Errorf("filter: invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("filter: invalid JSON: trailing data after filter object")
	}

	switch v := v.(type) {
	case nil:
		return nil, nil
	case object:
		return classify(v), nil
	default:
		return nil, fmt.Errorf("filter: expected a JSON object, got %T", v)
	}
}

// FromMap classifies an already-decoded filter. Map keys carry no order,
// so entries are emitted in sorted key order to keep output deterministic.
func FromMap(m map[string]any) Expr {
	if m == nil {
		return nil
	}
	return classify(toObject(m))
}

func classify(obj object) Expr {
	expr := make(Expr, 0, len(obj))
	for _, m := range obj {
		if mode, ok := groupModes[m.key]; ok {
			list, ok := m.value.([]any)
			if !ok {
				continue
			}
			items := make([]Expr, 0, len(list))
			for _, item := range list {
				if o, ok := item.(object); ok {
					items = append(items, classify(o))
				}
			}
			expr = append(expr, Entry{Kind: KindGroup, Key: m.key, Mode: mode, Items: items})
			continue
		}

		if op := Op(m.key); op.IsValid() {
			expr = append(expr, Entry{Kind: KindComparison, Key: m.key, Op: op, Value: plain(m.value)})
			continue
		}

		if falsy(m.value) {
			continue
		}
		var sub Expr
		if o, ok := m.value.(object); ok {
			sub = classify(o)
		}
		expr = append(expr, Entry{Kind: KindField, Key: m.key, Sub: sub})
	}
	return expr
}

// falsy mirrors the loose truthiness filters were authored against:
// null, false, zero and the empty string mean "no constraint".
func falsy(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		return err == nil && f == 0
	case float64:
		return v == 0
	case float32:
		return v == 0
	case int:
		return v == 0
	case int64:
		return v == 0
	case int32:
		return v == 0
	}
	return false
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := object{}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", kt)
			}
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{key: key, value: v})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil

	case '[':
		arr := []any{}
		for dec.More() {
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil

	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

// toObject converts decoded maps (and maps nested in slices) into sorted objects.
func toObject(m map[string]any) object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := make(object, 0, len(keys))
	for _, k := range keys {
		obj = append(obj, member{key: k, value: fromDecoded(m[k])})
	}
	return obj
}

func fromDecoded(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return toObject(v)
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = toObject(m)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = fromDecoded(item)
		}
		return out
	default:
		return v
	}
}

// plain turns ordered objects back into maps for use as comparison operands.
func plain(v any) any {
	switch v := v.(type) {
	case object:
		m := make(map[string]any, len(v))
		for _, mem := range v {
			m[mem.key] = plain(mem.value)
		}
		return m
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}
