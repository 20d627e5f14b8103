package qrcode_test

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wxauth/pkg/qrcode"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	data, err := qrcode.Generate("https://open.weixin.qq.com/connect/qrconnect?appid=x", 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, qrcode.DefaultSize, img.Bounds().Dx())
}

func TestGenerateValidation(t *testing.T) {
	t.Parallel()

	_, err := qrcode.Generate("", 256)
	assert.ErrorIs(t, err, qrcode.ErrEmptyContent)

	_, err = qrcode.Generate("x", 10)
	assert.ErrorIs(t, err, qrcode.ErrInvalidSize)
}

func TestGenerateBase64Image(t *testing.T) {
	t.Parallel()

	uri, err := qrcode.GenerateBase64Image("hello", 128)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
}
