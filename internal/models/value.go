package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ValueKind tags the variant held by a Value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a field value recovered from a model completion.
// Scalars are null, string, number (kept as its literal text) and bool;
// composites are an ordered list or an insertion-ordered map.
type Value struct {
	kind   ValueKind
	text   string
	flag   bool
	items  []Value
	fields *orderedmap.OrderedMap[string, Value]
}

// Null returns the null value
func Null() Value { return Value{kind: KindNull} }

// String returns a string value
func String(s string) Value { return Value{kind: KindString, text: s} }

// Number returns a number value holding its literal text, e.g. "45" or "3.5"
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// List returns a list value
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, items: items}
}

// NewMap returns an empty map value. Set mutates it in place.
func NewMap() Value {
	return Value{kind: KindMap, fields: orderedmap.New[string, Value]()}
}

// Kind returns the variant tag
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsScalar reports whether v is neither a list nor a map
func (v Value) IsScalar() bool { return v.kind != KindList && v.kind != KindMap }

// Text returns the string contents or number literal; empty for other kinds
func (v Value) Text() string {
	if v.kind == KindString || v.kind == KindNumber {
		return v.text
	}
	return ""
}

// BoolValue returns the boolean payload
func (v Value) BoolValue() bool { return v.kind == KindBool && v.flag }

// Items returns the list elements
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.items
}

// Len returns the number of list items or map entries, or the string length
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.items)
	case KindMap:
		return v.fields.Len()
	case KindString:
		return len(v.text)
	default:
		return 0
	}
}

// Set assigns a map entry, keeping the first insertion position of key
func (v Value) Set(key string, val Value) {
	if v.kind != KindMap {
		return
	}
	v.fields.Set(key, val)
}

// Get returns a map entry
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	return v.fields.Get(key)
}

// Has reports whether the map holds key
func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Keys returns map keys in insertion order
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, v.fields.Len())
	for pair := v.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Range calls fn for each map entry in insertion order until fn returns false
func (v Value) Range(fn func(key string, val Value) bool) {
	if v.kind != KindMap {
		return
	}
	for pair := v.fields.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Truthy follows the usual dynamic-language rules: null, false, zero,
// empty strings, empty lists and empty maps are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindString:
		return v.text != ""
	case KindNumber:
		f, err := strconv.ParseFloat(v.text, 64)
		if err != nil {
			return v.text != ""
		}
		return f != 0
	case KindBool:
		return v.flag
	case KindList:
		return len(v.items) > 0
	case KindMap:
		return v.fields.Len() > 0
	default:
		return false
	}
}

// Clone returns a deep copy
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = item.Clone()
		}
		return List(items...)
	case KindMap:
		out := NewMap()
		v.Range(func(key string, val Value) bool {
			out.Set(key, val.Clone())
			return true
		})
		return out
	default:
		return v
	}
}

// Equal reports deep equality, including map key order
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString, KindNumber:
		return v.text == o.text
	case KindBool:
		return v.flag == o.flag
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if v.fields.Len() != o.fields.Len() {
			return false
		}
		a, b := v.fields.Oldest(), o.fields.Oldest()
		for a != nil && b != nil {
			if a.Key != b.Key || !a.Value.Equal(b.Value) {
				return false
			}
			a, b = a.Next(), b.Next()
		}
		return true
	}
	return false
}

// MarshalJSON writes the value with map keys in insertion order
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.text)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		if !json.Valid([]byte(v.text)) {
			// literal-syntax numbers such as "0x1F" are emitted as strings
			b, _ := json.Marshal(v.text)
			buf.Write(b)
			return nil
		}
		buf.WriteString(v.text)
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.flag))
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		first := true
		var err error
		v.Range(func(key string, val Value) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			k, _ := json.Marshal(key)
			buf.Write(k)
			buf.WriteByte(':')
			err = val.writeJSON(buf)
			return err == nil
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON parses strict JSON into the value, preserving key order
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromInterface converts decoded Go values (maps, slices, scalars) into a Value.
// Go maps carry no order, so their keys are sorted.
func FromInterface(in interface{}) Value {
	switch t := in.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case json.Number:
		return Number(t.String())
	case int:
		return Number(strconv.Itoa(t))
	case int64:
		return Number(strconv.FormatInt(t, 10))
	case uint64:
		return Number(strconv.FormatUint(t, 10))
	case float32:
		return Number(strconv.FormatFloat(float64(t), 'f', -1, 32))
	case float64:
		return Number(strconv.FormatFloat(t, 'f', -1, 64))
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromInterface(item)
		}
		return List(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return List(items...)
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewMap()
		for _, k := range keys {
			out.Set(k, FromInterface(t[k]))
		}
		return out
	default:
		return String(fmt.Sprintf("%v", t))
	}
}
