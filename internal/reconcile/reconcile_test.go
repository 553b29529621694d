package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablerake/tablerake/internal/record"
)

func rec(pairs ...string) record.Record {
	r := record.New()
	for i := 0; i < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

func keyOf(t *testing.T, r record.Record, keys record.KeySpec) string {
	t.Helper()
	k, err := keys.CompositeKey(r)
	require.NoError(t, err)
	return k
}

func TestReconcile_UpdateAndInsert(t *testing.T) {
	existing := record.Set{rec("id", "1", "title", "Old", "price", "10")}
	incoming := record.Set{
		rec("id", "1", "title", "Old", "price", "12"),
		rec("id", "2", "title", "New", "price", "5"),
	}

	res, err := Reconcile(existing, incoming, record.KeySpec{"id"})
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.True(t, res.Records[0].Equal(rec("id", "1", "title", "Old", "price", "12")))
	assert.True(t, res.Records[1].Equal(rec("id", "2", "title", "New", "price", "5")))
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Unchanged)
}

func TestReconcile_UnchangedRecordLeftInPlace(t *testing.T) {
	existing := record.Set{rec("id", "1", "title", "Same")}
	incoming := record.Set{rec("id", "1", "title", "Same")}

	res, err := Reconcile(existing, incoming, record.KeySpec{"id"})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Unchanged)
}

func TestReconcile_EmptyExisting(t *testing.T) {
	incoming := record.Set{rec("id", "1"), rec("id", "2")}

	res, err := Reconcile(record.Set{}, incoming, record.KeySpec{"id"})
	require.NoError(t, err)

	assert.Len(t, res.Records, 2)
	assert.Equal(t, 2, res.Inserted)
}

func TestReconcile_EmptyIncoming(t *testing.T) {
	existing := record.Set{rec("id", "1"), rec("id", "2")}

	res, err := Reconcile(existing, record.Set{}, record.KeySpec{"id"})
	require.NoError(t, err)

	assert.Len(t, res.Records, 2)
	assert.Equal(t, 0, res.Inserted+res.Updated+res.Unchanged)
}

func TestReconcile_LastWriteWinsWithinBatch(t *testing.T) {
	incoming := record.Set{
		rec("id", "1", "v", "1"),
		rec("id", "1", "v", "2"),
	}

	res, err := Reconcile(record.Set{}, incoming, record.KeySpec{"id"})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	v, _ := res.Records[0].Get("v")
	assert.Equal(t, "2", v)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
}

func TestReconcile_ExactDuplicateWithinBatch(t *testing.T) {
	incoming := record.Set{
		rec("id", "1", "v", "same"),
		rec("id", "1", "v", "same"),
	}

	res, err := Reconcile(record.Set{}, incoming, record.KeySpec{"id"})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Unchanged)
}

func TestReconcile_OrderPreservation(t *testing.T) {
	existing := record.Set{
		rec("id", "a", "v", "1"),
		rec("id", "b", "v", "2"),
		rec("id", "c", "v", "3"),
	}
	incoming := record.Set{
		rec("id", "b", "v", "changed"),
		rec("id", "d", "v", "4"),
	}

	res, err := Reconcile(existing, incoming, record.KeySpec{"id"})
	require.NoError(t, err)

	require.Len(t, res.Records, 4)
	ids := make([]string, len(res.Records))
	for i, r := range res.Records {
		v, _ := r.Get("id")
		ids[i] = v.(string)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids, "untouched rows keep their positions, inserts append")
}

func TestReconcile_GrowthBound(t *testing.T) {
	existing := record.Set{rec("id", "1"), rec("id", "2")}
	incoming := record.Set{
		rec("id", "2"), // known key
		rec("id", "3"), // new key
		rec("id", "4"), // new key
		rec("id", "3"), // repeat of a new key within the batch
	}

	res, err := Reconcile(existing, incoming, record.KeySpec{"id"})
	require.NoError(t, err)

	// len(output) == len(existing) + distinct incoming keys not in existing
	assert.Len(t, res.Records, 2+2)
}

func TestReconcile_Idempotence(t *testing.T) {
	existing := record.Set{rec("id", "1", "v", "old")}
	incoming := record.Set{
		rec("id", "1", "v", "new"),
		rec("id", "2", "v", "x"),
	}
	keys := record.KeySpec{"id"}

	first, err := Reconcile(existing, incoming, keys)
	require.NoError(t, err)
	require.Equal(t, 1, first.Inserted)
	require.Equal(t, 1, first.Updated)

	second, err := Reconcile(first.Records, incoming, keys)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted, "repeated batch is fully absorbed")
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, len(incoming), second.Unchanged)
	assert.Len(t, second.Records, len(first.Records))
}

func TestReconcile_PreexistingDuplicatesPreserved(t *testing.T) {
	existing := record.Set{
		rec("id", "1", "v", "first"),
		rec("id", "1", "v", "second"),
	}
	incoming := record.Set{rec("id", "1", "v", "updated")}

	res, err := Reconcile(existing, incoming, record.KeySpec{"id"})
	require.NoError(t, err)

	// The first occurrence owns the key; the second stays as-is.
	require.Len(t, res.Records, 2)
	v, _ := res.Records[0].Get("v")
	assert.Equal(t, "updated", v)
	v, _ = res.Records[1].Get("v")
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, res.Updated)
}

func TestReconcile_FieldSetMismatchIsDifference(t *testing.T) {
	existing := record.Set{rec("id", "1", "title", "x")}
	incoming := record.Set{rec("id", "1", "title", "x", "price", "9")}

	res, err := Reconcile(existing, incoming, record.KeySpec{"id"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Updated, "extra field counts as a change")
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].Has("price"))
}

func TestReconcile_MultiFieldKey(t *testing.T) {
	keys := record.KeySpec{"id", "region"}
	existing := record.Set{rec("id", "1", "region", "eu", "v", "a")}
	incoming := record.Set{
		rec("id", "1", "region", "us", "v", "b"), // same id, other region: insert
		rec("id", "1", "region", "eu", "v", "c"), // same composite key: update
	}

	res, err := Reconcile(existing, incoming, keys)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, res.Records, 2)
	assert.Equal(t, keyOf(t, res.Records[0], keys), keyOf(t, existing[0], keys))
}

func TestReconcile_EmptyKeySpecFails(t *testing.T) {
	_, err := Reconcile(record.Set{}, record.Set{rec("id", "1")}, record.KeySpec{})
	require.Error(t, err)
	assert.ErrorIs(t, err, record.ErrEmptyKeySpec)
}

func TestReconcile_MissingKeyFieldFails(t *testing.T) {
	existing := record.Set{rec("id", "1")}
	incoming := record.Set{rec("title", "no id here")}

	_, err := Reconcile(existing, incoming, record.KeySpec{"id"})
	require.Error(t, err)

	var missing *record.MissingKeyFieldError
	assert.True(t, errors.As(err, &missing))
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	existing := record.Set{rec("id", "1", "v", "old")}
	incoming := record.Set{rec("id", "1", "v", "new")}

	_, err := Reconcile(existing, incoming, record.KeySpec{"id"})
	require.NoError(t, err)

	v, _ := existing[0].Get("v")
	assert.Equal(t, "old", v, "existing set must stay untouched")
	v, _ = incoming[0].Get("v")
	assert.Equal(t, "new", v)
}
