package record

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// KeySpec is a non-empty ordered set of field names that defines row
// identity. Two records are key-equal iff they agree on the value of
// every key field.
type KeySpec []string

// ErrEmptyKeySpec is returned when a key specification has no fields.
var ErrEmptyKeySpec = eris.New("record: key spec is empty")

// MissingKeyFieldError reports a record that lacks a declared key field.
// It is a configuration problem, not a data problem: key fields must be
// present on every projected record.
type MissingKeyFieldError struct {
	Field string
}

func (e *MissingKeyFieldError) Error() string {
	return "record: missing key field " + e.Field
}

// Validate checks the spec is usable at all. Field presence is checked
// per record by CompositeKey.
func (k KeySpec) Validate() error {
	if len(k) == 0 {
		return ErrEmptyKeySpec
	}
	seen := make(map[string]bool, len(k))
	for _, f := range k {
		if f == "" {
			return eris.New("record: empty key field name")
		}
		if seen[f] {
			return eris.Errorf("record: duplicate key field %q", f)
		}
		seen[f] = true
	}
	return nil
}

// CompositeKey derives the record's identity under this spec. Key parts
// are JSON-encoded and joined with a unit separator, so string "1" and
// number 1 produce distinct keys and no value can forge a separator
// (JSON escapes control characters).
func (k KeySpec) CompositeKey(r Record) (string, error) {
	if len(k) == 0 {
		return "", ErrEmptyKeySpec
	}
	var b strings.Builder
	for i, field := range k {
		v, ok := r.Get(field)
		if !ok {
			return "", &MissingKeyFieldError{Field: field}
		}
		part, err := json.Marshal(v)
		if err != nil {
			return "", eris.Wrapf(err, "record: encode key field %q", field)
		}
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.Write(part)
	}
	return b.String(), nil
}
