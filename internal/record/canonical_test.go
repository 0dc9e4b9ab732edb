package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"b": 1, "a": true, "c": []any{"x", 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":true,"b":1,"c":["x",2]}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(data))
}

func TestMarshalCanonical_NFCNormalizes(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed U+00E9.
	data, err := MarshalCanonical("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(data))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	data, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(data))

	// A literal backslash followed by "u2028" text stays escaped.
	data, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(data))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"k": struct{}{}})
	assert.Error(t, err)
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Equal(t, -1, compareKeysRFC8785("a", "b"))
	assert.Equal(t, 1, compareKeysRFC8785("ab", "a"))
	assert.Equal(t, 0, compareKeysRFC8785("x", "x"))
	// U+FF61 sorts after a surrogate pair in UTF-16 but before it in UTF-8.
	assert.Equal(t, 1, compareKeysRFC8785("\uFF61", "\U0001F600"))
}
