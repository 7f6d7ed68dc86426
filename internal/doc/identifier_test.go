package doc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Identifier
		wantErr bool
	}{
		{
			name:  "durable token",
			input: "a1b2c3d4",
			want:  Identifier{Kind: KindDurable, Token: "a1b2c3d4"},
		},
		{
			name:  "ephemeral token",
			input: "tmp_0191e4a0-7c1e-7000-8000-000000000001",
			want:  Identifier{Kind: KindEphemeral, Token: "0191e4a0-7c1e-7000-8000-000000000001"},
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "bare prefix",
			input:   "tmp_",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentifier(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentifier_RoundTrip(t *testing.T) {
	for _, id := range []Identifier{NewEphemeralID(), NewDurableID()} {
		parsed, err := ParseIdentifier(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestIdentifier_JSON(t *testing.T) {
	eph := Identifier{Kind: KindEphemeral, Token: "abc"}

	data, err := json.Marshal(eph)
	require.NoError(t, err)
	assert.Equal(t, `"tmp_abc"`, string(data))

	var back Identifier
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, eph, back)
	assert.True(t, back.IsEphemeral())
}

func TestNewEphemeralID_Unique(t *testing.T) {
	a := NewEphemeralID()
	b := NewEphemeralID()
	assert.NotEqual(t, a.Token, b.Token)
	assert.True(t, a.IsEphemeral())
}
