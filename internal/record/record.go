// Package record defines the scraped record model: ordered field→value
// mappings, record sets, key specifications, and composite keys.
package record

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Row is one raw scraped page row: an ordered sequence of cell texts.
type Row []string

// Record is an ordered mapping from field name to a scalar value.
// Values are one of: string, float64, or nil. Field order is preserved
// through JSON serialization so persisted sets diff cleanly.
type Record struct {
	fields []string
	values map[string]any
}

// New creates an empty Record that will keep fields in insertion order.
func New() Record {
	return Record{values: make(map[string]any)}
}

// Set stores a value under name, appending the field if it is new.
func (r *Record) Set(name string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[name]; !ok {
		r.fields = append(r.fields, name)
	}
	r.values[name] = value
}

// Get returns the value for name and whether the field exists.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether the field exists on the record.
func (r Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Fields returns the field names in insertion order.
func (r Record) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.fields) }

// Equal compares two records over the union of their field sets.
// A field present on one side and absent on the other is a difference.
func (r Record) Equal(other Record) bool {
	if len(r.fields) != len(other.fields) {
		return false
	}
	for name, v := range r.values {
		ov, ok := other.values[name]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := Record{
		fields: make([]string, len(r.fields)),
		values: make(map[string]any, len(r.values)),
	}
	copy(out.fields, r.fields)
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// MarshalJSON writes the record as a JSON object with fields in
// insertion order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, eris.Wrapf(err, "record: marshal field name %q", name)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[name])
		if err != nil {
			return nil, eris.Wrapf(err, "record: marshal field %q", name)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving its key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "record: decode")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return eris.New("record: expected JSON object")
	}

	*r = New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "record: decode field name")
		}
		name, ok := keyTok.(string)
		if !ok {
			return eris.New("record: non-string field name")
		}

		valTok, err := dec.Token()
		if err != nil {
			return eris.Wrapf(err, "record: decode field %q", name)
		}
		switch v := valTok.(type) {
		case nil:
			r.Set(name, nil)
		case string:
			r.Set(name, v)
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return eris.Wrapf(err, "record: field %q: bad number", name)
			}
			r.Set(name, f)
		default:
			return eris.Errorf("record: field %q: unsupported value type %T", name, valTok)
		}
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "record: decode object end")
	}
	return nil
}

// Set is an ordered sequence of records. Uniqueness is not enforced at
// this level; deduplication is the reconciler's concern.
type Set []Record

// Clone returns a shallow-independent copy of the set: the slice is new
// and each record is cloned.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for i, r := range s {
		out[i] = r.Clone()
	}
	return out
}
