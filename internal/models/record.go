package models

import (
	"bytes"
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is the per-request field mapping carried through recovery,
// completion and normalization. It is mutated in place and owned by a
// single report generation.
type Record struct {
	fields *orderedmap.OrderedMap[string, Value]
}

// NewRecord returns an empty record
func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, Value]()}
}

// RecordFromValue builds a record from a map value; ok is false for other kinds
func RecordFromValue(v Value) (*Record, bool) {
	if v.Kind() != KindMap {
		return nil, false
	}
	r := NewRecord()
	v.Range(func(key string, val Value) bool {
		r.Set(key, val)
		return true
	})
	return r, true
}

// Get returns the value stored under key
func (r *Record) Get(key string) (Value, bool) {
	return r.fields.Get(key)
}

// Set stores a value; existing keys keep their position
func (r *Record) Set(key string, v Value) {
	r.fields.Set(key, v)
}

// Delete removes key
func (r *Record) Delete(key string) {
	r.fields.Delete(key)
}

// Has reports whether key is present
func (r *Record) Has(key string) bool {
	_, ok := r.fields.Get(key)
	return ok
}

// Len returns the number of fields
func (r *Record) Len() int {
	return r.fields.Len()
}

// Keys returns field names in insertion order
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Range calls fn for each field in insertion order until fn returns false
func (r *Record) Range(fn func(key string, v Value) bool) {
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Merge copies fields from other that are absent from r
func (r *Record) Merge(other *Record) int {
	added := 0
	other.Range(func(key string, v Value) bool {
		if !r.Has(key) {
			r.Set(key, v)
			added++
		}
		return true
	})
	return added
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	out := NewRecord()
	r.Range(func(key string, v Value) bool {
		out.Set(key, v.Clone())
		return true
	})
	return out
}

// Equal reports whether both records hold the same fields in the same order
func (r *Record) Equal(other *Record) bool {
	if r.Len() != other.Len() {
		return false
	}
	a, b := r.fields.Oldest(), other.fields.Oldest()
	for a != nil && b != nil {
		if a.Key != b.Key || !a.Value.Equal(b.Value) {
			return false
		}
		a, b = a.Next(), b.Next()
	}
	return true
}

// Flatten returns the flat key -> string interchange form.
// Non-string values are emitted as compact JSON.
func (r *Record) Flatten() FlatRecord {
	out := make(FlatRecord, 0, r.Len())
	r.Range(func(key string, v Value) bool {
		var text string
		switch v.Kind() {
		case KindString, KindNumber:
			text = v.Text()
		case KindNull:
			text = ""
		default:
			b, _ := v.MarshalJSON()
			text = string(b)
		}
		out = append(out, Field{Key: key, Value: text})
		return true
	})
	return out
}

// MarshalJSON writes the record as an object in field order
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	r.Range(func(key string, v Value) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		var b []byte
		b, err = v.MarshalJSON()
		buf.Write(b)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Field is one entry of a flattened record
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FlatRecord is an ordered flat record; it marshals as a JSON object
type FlatRecord []Field

// Get returns the value for key
func (f FlatRecord) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// Map returns the record as a Go map
func (f FlatRecord) Map() map[string]string {
	out := make(map[string]string, len(f))
	for _, field := range f {
		out[field.Key] = field.Value
	}
	return out
}

// MarshalJSON writes an object with keys in record order
func (f FlatRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of string values, keeping key order
func (f *FlatRecord) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	out := FlatRecord{}
	v.Range(func(key string, val Value) bool {
		out = append(out, Field{Key: key, Value: val.Text()})
		return true
	})
	*f = out
	return nil
}
