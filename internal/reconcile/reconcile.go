// Package reconcile merges a freshly scraped batch of records into a
// previously persisted set, classifying every incoming record as an
// insert, an update, or unchanged against a composite-key index.
package reconcile

import (
	"github.com/rotisserie/eris"

	"github.com/tablerake/tablerake/internal/record"
)

// Result is the reconciled record set plus classification counts. The
// counts are for reporting only and are never persisted.
type Result struct {
	Records   record.Set `json:"records"`
	Inserted  int        `json:"inserted"`
	Updated   int        `json:"updated"`
	Unchanged int        `json:"unchanged"`
}

// Reconcile merges incoming into existing under the given key spec.
//
// The output starts as a copy of existing in its original order; rows
// already persisted keep their relative positions so downstream diffs
// stay stable. Each incoming record is looked up by composite key:
// a hit replaces the indexed row in place when any field differs,
// a miss appends to the end. Within one batch the last record for a
// key wins, since every record is processed against the same evolving
// index. Pre-existing duplicates in storage are preserved as-is; the
// first occurrence owns the key.
//
// Neither input is mutated. The only error condition is structural:
// an empty key spec, or a record on either side missing a key field.
// Duplicate keys and mismatched field sets are normal data.
func Reconcile(existing, incoming record.Set, keys record.KeySpec) (*Result, error) {
	if err := keys.Validate(); err != nil {
		return nil, eris.Wrap(err, "reconcile: invalid key spec")
	}

	index := make(map[string]int, len(existing))
	out := make(record.Set, 0, len(existing)+len(incoming))

	for i, r := range existing {
		key, err := keys.CompositeKey(r)
		if err != nil {
			return nil, eris.Wrapf(err, "reconcile: existing record %d", i)
		}
		out = append(out, r)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	res := &Result{}
	for i, r := range incoming {
		key, err := keys.CompositeKey(r)
		if err != nil {
			return nil, eris.Wrapf(err, "reconcile: incoming record %d", i)
		}

		pos, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, r)
			res.Inserted++
			continue
		}
		if out[pos].Equal(r) {
			res.Unchanged++
			continue
		}
		out[pos] = r
		res.Updated++
	}

	res.Records = out
	return res, nil
}
