package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"overlay-router/internal/common/errors"
)

func TestEncodeTable(t *testing.T) {
	data, err := EncodeTable([]Tuple{
		{Source: "C1", Destination: "C2", GatewayCommunity: "C1", GatewayMemberID: "M001", Cost: 1},
		{Source: "C1", Destination: "C3", GatewayCommunity: "C2", GatewayMemberID: "M002", Cost: 2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[["C1","C2","C1","M001",1],["C1","C3","C2","M002",2]]`, string(data))

	empty, err := EncodeTable(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestDecodeTable(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got, err := DecodeTable([]byte(`[["C2","C3","C2","M002",1]]`))
		require.NoError(t, err)
		assert.Equal(t, []Tuple{{Source: "C2", Destination: "C3", GatewayCommunity: "C2", GatewayMemberID: "M002", Cost: 1}}, got)
	})

	t.Run("empty array", func(t *testing.T) {
		got, err := DecodeTable([]byte(`[]`))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	malformed := map[string]string{
		"not json":        `<table/>`,
		"object":          `{"source":"C1"}`,
		"short tuple":     `[["C1","C2","C1","M1"]]`,
		"long tuple":      `[["C1","C2","C1","M1",1,"extra"]]`,
		"numeric id":      `[["C1",2,"C1","M1",1]]`,
		"empty id":        `[["C1","","C1","M1",1]]`,
		"string cost":     `[["C1","C2","C1","M1","1"]]`,
		"fractional cost": `[["C1","C2","C1","M1",1.5]]`,
		"zero cost":       `[["C1","C2","C1","M1",0]]`,
		"null tuple":      `[null]`,
		"empty input":     ``,
	}
	for name, input := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeTable([]byte(input))
			assert.True(t, errors.IsType(err, errors.ErrTypeFormat), "got %v", err)
		})
	}
}

func TestEnvelope(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		env := NewEnvelope("M042", "soap", "C3", []byte("<hello/>"))
		env.OriginMemberID = "L"

		data, err := env.Encode()
		require.NoError(t, err)

		decoded, err := DecodeEnvelope(data)
		require.NoError(t, err)
		assert.Equal(t, env, decoded)
	})

	t.Run("rewrap increments hops and leaves original", func(t *testing.T) {
		env := NewEnvelope("M042", "soap", "C3", nil)
		next := env.Rewrap()
		assert.Equal(t, 1, next.Hops)
		assert.Equal(t, 0, env.Hops)
		assert.Equal(t, env.ID, next.ID)
	})

	invalid := map[string]string{
		"garbage":          `not an envelope`,
		"no member":        `{"protocol":"soap","destination_community":"C3"}`,
		"no community":     `{"destination_member_id":"M1","protocol":"soap"}`,
		"no protocol":      `{"destination_member_id":"M1","destination_community":"C3"}`,
		"negative hops":    `{"destination_member_id":"M1","protocol":"soap","destination_community":"C3","hops":-1}`,
		"payload not b64":  `{"destination_member_id":"M1","protocol":"soap","destination_community":"C3","payload":"%%%"}`,
	}
	for name, input := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(input))
			assert.True(t, errors.IsType(err, errors.ErrTypeFormat), "got %v", err)
		})
	}
}
