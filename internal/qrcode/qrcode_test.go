package qrcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for _, code := range []string{"T-9F2C41AB", "T-00000000"} {
		png, err := Encode(code)
		require.NoError(t, err)
		got, err := Decode(png)
		require.NoError(t, err)
		assert.Equal(t, code, got)
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("not an image"))
	assert.ErrorIs(t, err, ErrNoCode)
}
