package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"instagrid/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, width, height, quality int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()

	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestCropRect(t *testing.T) {
	center := models.DefaultCropPosition()

	t.Run("wide image to square crops width", func(t *testing.T) {
		rect := CropRect(200, 100, models.CropRatioSquare, center)
		assert.Equal(t, image.Rect(50, 0, 150, 100), rect)
	})

	t.Run("tall image to square crops height", func(t *testing.T) {
		rect := CropRect(100, 200, models.CropRatioSquare, center)
		assert.Equal(t, image.Rect(0, 50, 100, 150), rect)
	})

	t.Run("focal point pins the window", func(t *testing.T) {
		left := CropRect(200, 100, models.CropRatioSquare, models.CropPosition{X: 0, Y: 50})
		assert.Equal(t, image.Rect(0, 0, 100, 100), left)

		right := CropRect(200, 100, models.CropRatioSquare, models.CropPosition{X: 100, Y: 50})
		assert.Equal(t, image.Rect(100, 0, 200, 100), right)
	})

	t.Run("out of range position is clamped", func(t *testing.T) {
		rect := CropRect(200, 100, models.CropRatioSquare, models.CropPosition{X: 400, Y: -20})
		assert.Equal(t, image.Rect(100, 0, 200, 100), rect)
	})

	t.Run("original keeps full frame", func(t *testing.T) {
		rect := CropRect(123, 456, models.CropRatioOriginal, center)
		assert.Equal(t, image.Rect(0, 0, 123, 456), rect)
	})

	t.Run("portrait 4:5 on a square image", func(t *testing.T) {
		rect := CropRect(100, 100, models.CropRatioPortrait, center)
		assert.Equal(t, 80, rect.Dx())
		assert.Equal(t, 100, rect.Dy())
	})
}

func TestCrop(t *testing.T) {
	t.Run("produces the requested ratio", func(t *testing.T) {
		src := encodeJPEG(t, 200, 100, 90)

		out, err := Crop(src, models.CropRatioSquare, models.DefaultCropPosition())
		require.NoError(t, err)

		w, h := decodeSize(t, out)
		assert.Equal(t, 100, w)
		assert.Equal(t, 100, h)
	})

	t.Run("original passes bytes through untouched", func(t *testing.T) {
		src := encodeJPEG(t, 64, 64, 90)

		out, err := Crop(src, models.CropRatioOriginal, models.DefaultCropPosition())
		require.NoError(t, err)
		assert.Equal(t, src, out)
	})

	t.Run("garbage input fails", func(t *testing.T) {
		_, err := Crop([]byte("not an image"), models.CropRatioSquare, models.DefaultCropPosition())
		assert.Error(t, err)
	})
}

func TestCompress(t *testing.T) {
	t.Run("small payload passes through", func(t *testing.T) {
		src := encodeJPEG(t, 64, 64, 90)
		assert.Equal(t, src, Compress(src))
	})

	t.Run("large payload is reduced under the limit", func(t *testing.T) {
		src := encodeJPEG(t, 3000, 3000, 100)
		require.Greater(t, len(src), maxUploadBytes)

		out := Compress(src)
		assert.LessOrEqual(t, len(out), maxUploadBytes)

		w, h := decodeSize(t, out)
		assert.Equal(t, 3000, w)
		assert.Equal(t, 3000, h)
	})

	t.Run("undecodable payload passes through", func(t *testing.T) {
		big := make([]byte, maxUploadBytes+1)
		assert.Equal(t, big, Compress(big))
	})
}

func TestPrepare(t *testing.T) {
	src := encodeJPEG(t, 300, 100, 90)

	out, err := Prepare(src, models.CropRatioSquare, models.DefaultCropPosition())
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)
	assert.LessOrEqual(t, len(out), maxUploadBytes)
}
