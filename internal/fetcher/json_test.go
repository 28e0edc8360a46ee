package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAny(t *testing.T) {
	data, err := DecodeAny(strings.NewReader(`{"features":[{"type":"Feature"}]}`))
	require.NoError(t, err)
	obj, ok := data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, obj, "features")

	data, err = DecodeAny(strings.NewReader(`[1, 2, 3]`))
	require.NoError(t, err)
	assert.Len(t, data, 3)

	_, err = DecodeAny(strings.NewReader(`{not json`))
	require.Error(t, err)
}

func TestDecodeJSONObject(t *testing.T) {
	type envelope struct {
		Places []struct {
			ID string `json:"id"`
		} `json:"places"`
	}

	obj, err := DecodeJSONObject[envelope](strings.NewReader(`{"places":[{"id":"a"},{"id":"b"}]}`))
	require.NoError(t, err)
	require.Len(t, obj.Places, 2)
	assert.Equal(t, "a", obj.Places[0].ID)
}
