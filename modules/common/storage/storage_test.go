package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(t *testing.T) image.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 96, A: 255})
		}
	}
	return img
}

func TestConvertToWebPAcceptsPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(t)))

	webpData, err := convertToWebP(buf.Bytes(), 90.0)
	require.NoError(t, err)
	assert.NotEmpty(t, webpData)
}

func TestConvertToWebPAcceptsJPEG(t *testing.T) {
	// URL and data-URI responses from the generation API commonly carry
	// JPEG rather than PNG.
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(t), &jpeg.Options{Quality: 85}))

	webpData, err := convertToWebP(buf.Bytes(), 90.0)
	require.NoError(t, err)
	assert.NotEmpty(t, webpData)
}

func TestConvertToWebPRejectsNonImage(t *testing.T) {
	_, err := convertToWebP([]byte("not an image payload"), 90.0)
	assert.Error(t, err)
}
