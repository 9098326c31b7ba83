package chain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind discriminates the cases of Value, per spec.md §9's tagged-union
// design note: a decoded event's data is heterogeneous enough that a plain
// map[string]interface{} would push type assertions into every consumer.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindNumber
	KindBigInt // large integers, kept as a decimal string to survive round-trips
	KindList
	KindMap
)

// Value is a single field of a decoded event's data payload.
type Value struct {
	kind   Kind
	str    string
	b      bool
	num    float64
	list   []Value
	fields map[string]Value
}

func String(s string) Value  { return Value{kind: KindString, str: s} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func BigInt(decimal string) Value { return Value{kind: KindBigInt, str: decimal} }
func List(vs []Value) Value  { return Value{kind: KindList, list: vs} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, fields: m} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsBigInt() (string, bool) {
	if v.kind != KindBigInt {
		return "", false
	}
	return v.str, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.fields, true
}

// Get resolves a dotted path ("trade.solAmount") against a Map value,
// descending through nested maps and, where a segment is numeric, into
// list elements. It returns (zero Value, false) for any path that does
// not resolve, which the filter engine treats as "condition not satisfied"
// rather than an error.
func (v Value) Get(path []string) (Value, bool) {
	cur := v
	for _, seg := range path {
		m, ok := cur.AsMap()
		if ok {
			next, found := m[seg]
			if !found {
				return Value{}, false
			}
			cur = next
			continue
		}
		list, ok := cur.AsList()
		if !ok {
			return Value{}, false
		}
		idx, err := parseIndex(seg)
		if err != nil || idx < 0 || idx >= len(list) {
			return Value{}, false
		}
		cur = list[idx]
	}
	return cur, true
}

func parseIndex(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

// MarshalJSON renders Value as the plain JSON a delivery destination would
// actually receive: no envelope kind tag, just the natural representation.
// BigInt values serialize as JSON strings to avoid precision loss.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString, KindBigInt:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.num)
	case KindList:
		return json.Marshal(v.list)
	case KindMap:
		return json.Marshal(v.fields)
	default:
		return json.Marshal(nil)
	}
}

// FromAny converts a value decoded off arbitrary JSON (string, bool,
// float64, []any, map[string]any, or nil) into a Value. Used only at
// realtime-bus boundaries that round-trip an OutputRecord through JSON
// without Value's own wire format (a NATS-backed subscriber decoding
// another process's published message) — the original Kind distinction
// between a number and a BigInt is already lost by MarshalJSON and cannot
// be recovered here, so both land as KindNumber/KindString per Go's own
// JSON decoding of the wire bytes.
func FromAny(v any) Value {
	switch t := v.(type) {
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			items = append(items, FromAny(e))
		}
		return List(items)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return Map(m)
	default:
		return Value{}
	}
}

// SortedKeys returns a Map value's keys in a deterministic order, used by
// the transform engine when rendering human-readable templates.
func SortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
