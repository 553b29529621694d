package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    KeySpec
		wantErr bool
	}{
		{name: "single key", spec: KeySpec{"id"}},
		{name: "multi key", spec: KeySpec{"id", "region"}},
		{name: "empty", spec: KeySpec{}, wantErr: true},
		{name: "nil", spec: nil, wantErr: true},
		{name: "empty field name", spec: KeySpec{"id", ""}, wantErr: true},
		{name: "duplicate field", spec: KeySpec{"id", "id"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKeySpec_CompositeKey(t *testing.T) {
	spec := KeySpec{"id", "region"}

	a, err := spec.CompositeKey(makeRecord("id", "1", "region", "eu", "price", "10"))
	require.NoError(t, err)
	b, err := spec.CompositeKey(makeRecord("id", "1", "region", "eu", "price", "999"))
	require.NoError(t, err)
	assert.Equal(t, a, b, "non-key fields must not affect the key")

	c, err := spec.CompositeKey(makeRecord("id", "1", "region", "us"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestKeySpec_CompositeKey_TypeDistinct(t *testing.T) {
	spec := KeySpec{"id"}

	asString, err := spec.CompositeKey(makeRecord("id", "1"))
	require.NoError(t, err)
	asNumber, err := spec.CompositeKey(makeRecord("id", float64(1)))
	require.NoError(t, err)
	assert.NotEqual(t, asString, asNumber, `string "1" and number 1 must not collide`)
}

func TestKeySpec_CompositeKey_NoSeparatorForgery(t *testing.T) {
	spec := KeySpec{"a", "b"}

	// A value containing the separator byte must not collide with a
	// key split differently across fields.
	x, err := spec.CompositeKey(makeRecord("a", "1\x1f2", "b", "3"))
	require.NoError(t, err)
	y, err := spec.CompositeKey(makeRecord("a", "1", "b", "2\x1f3"))
	require.NoError(t, err)
	assert.NotEqual(t, x, y)
}

func TestKeySpec_CompositeKey_MissingField(t *testing.T) {
	spec := KeySpec{"id", "region"}

	_, err := spec.CompositeKey(makeRecord("id", "1"))
	require.Error(t, err)

	var missing *MissingKeyFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "region", missing.Field)
}

func TestKeySpec_CompositeKey_EmptySpec(t *testing.T) {
	_, err := KeySpec{}.CompositeKey(makeRecord("id", "1"))
	assert.ErrorIs(t, err, ErrEmptyKeySpec)
}

func TestKeySpec_CompositeKey_NilValueAllowed(t *testing.T) {
	spec := KeySpec{"id"}
	key, err := spec.CompositeKey(makeRecord("id", nil))
	require.NoError(t, err)
	assert.Equal(t, "null", key)
}
