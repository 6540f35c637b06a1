package pdscreen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDrawingType(t *testing.T) {
	cases := map[string]DrawingType{
		"s":      Spiral,
		"S":      Spiral,
		"spiral": Spiral,
		"w":      Wave,
		" Wave ": Wave,
	}
	for in, want := range cases {
		got, err := ParseDrawingType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "x", "spirals", "meander"} {
		_, err := ParseDrawingType(in)
		assert.ErrorIs(t, err, ErrUnknownDrawingType, in)
	}
}

func TestDrawingType_Names(t *testing.T) {
	assert.Equal(t, "spiral", Spiral.String())
	assert.Equal(t, "Wave", Wave.Title())
	assert.Equal(t, "DrawingType(7)", DrawingType(7).String())
}

func TestDrawingType_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Type DrawingType `json:"type"`
	}{Wave})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"wave"}`, string(data))

	var v struct {
		Type DrawingType `json:"type"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"type":"s"}`), &v))
	assert.Equal(t, Spiral, v.Type)

	_, err = json.Marshal(DrawingType(9))
	assert.Error(t, err)
}
