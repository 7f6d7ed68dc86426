package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	v := map[string]any{"b": 2, "a": 1, "c": 3}

	got, err := MarshalCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(got))
}

func TestMarshalCanonical_Numbers(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"whole float equals int", float64(100), "100"},
		{"fractional float", 1.5, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical("<b> & you")
	require.NoError(t, err)
	assert.Equal(t, `"<b> & you"`, string(got))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "é" as combining sequence vs precomposed must serialize identically
	combining := "é"
	precomposed := "é"

	a, err := MarshalCanonical(combining)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestCanonicalEqual(t *testing.T) {
	a := map[string]any{"x": float64(100), "nested": map[string]any{"k": "v"}}
	b := map[string]any{"nested": map[string]any{"k": "v"}, "x": 100}

	assert.True(t, CanonicalEqual(a, b))
	assert.False(t, CanonicalEqual(a, map[string]any{"x": 101}))
	assert.True(t, CanonicalEqual(nil, nil))
}

func TestMarshalCanonical_UnsupportedType(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	require.Error(t, err)
}
