package shared

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromString(t *testing.T) {
	t.Run("round trips a valid uuid", func(t *testing.T) {
		want := NewID()
		got, err := IDFromString(want.String())
		require.NoError(t, err)
		assert.True(t, want.Equals(got))
	})

	t.Run("malformed input is an invalid input error", func(t *testing.T) {
		_, err := IDFromString("not-a-uuid")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestID_JSON(t *testing.T) {
	t.Run("marshals as a quoted uuid", func(t *testing.T) {
		id := MustIDFromString("b9a2e7c0-4f3d-4a61-9c1e-5d2f8a7b3c10")
		data, err := json.Marshal(id)
		require.NoError(t, err)
		assert.Equal(t, `"b9a2e7c0-4f3d-4a61-9c1e-5d2f8a7b3c10"`, string(data))

		var back ID
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, id.Equals(back))
	})

	t.Run("non-string json is an invalid input error", func(t *testing.T) {
		var id ID
		err := json.Unmarshal([]byte(`42`), &id)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("quoted garbage is an invalid input error", func(t *testing.T) {
		var id ID
		err := json.Unmarshal([]byte(`"nope"`), &id)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestID_Scan(t *testing.T) {
	id := NewID()

	t.Run("string and bytes scan", func(t *testing.T) {
		var a, b ID
		require.NoError(t, a.Scan(id.String()))
		require.NoError(t, b.Scan([]byte(id.String())))
		assert.True(t, a.Equals(id))
		assert.True(t, b.Equals(id))
	})

	t.Run("unsupported source type fails", func(t *testing.T) {
		var out ID
		assert.Error(t, out.Scan(42))
	})

	t.Run("value renders the canonical text form", func(t *testing.T) {
		v, err := id.Value()
		require.NoError(t, err)
		assert.Equal(t, id.String(), v)
	})
}
