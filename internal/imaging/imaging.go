package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"instagrid/internal/domain/models"
)

const (
	// Platform limits for single-image posts.
	maxUploadBytes = 800 * 1024
	minQuality     = 10
	startQuality   = 90
)

// CropRect computes the crop rectangle for an image of the given size, target
// ratio and focal position. The focal position selects where along the
// cropable axis the window sits: {0,0} pins top-left, {100,100} bottom-right.
func CropRect(width, height int, ratio models.CropRatio, pos models.CropPosition) image.Rectangle {
	target, ok := ratio.AspectValue()
	if !ok || width == 0 || height == 0 {
		return image.Rect(0, 0, width, height)
	}

	pos = pos.Clamp()
	imgRatio := float64(width) / float64(height)

	switch {
	case imgRatio > target:
		// wider than target: crop width
		newWidth := int(float64(height) * target)
		maxLeft := width - newWidth
		left := int(float64(maxLeft) * pos.X / 100)
		return image.Rect(left, 0, left+newWidth, height)
	case imgRatio < target:
		// taller than target: crop height
		newHeight := int(float64(width) / target)
		maxTop := height - newHeight
		top := int(float64(maxTop) * pos.Y / 100)
		return image.Rect(0, top, width, top+newHeight)
	default:
		return image.Rect(0, 0, width, height)
	}
}

// Crop decodes the image, cuts it to the requested ratio at the focal point
// and re-encodes as JPEG. CropRatioOriginal returns the input untouched.
func Crop(data []byte, ratio models.CropRatio, pos models.CropPosition) ([]byte, error) {
	const op = "imaging.Crop"

	if _, ok := ratio.AspectValue(); !ok {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	bounds := img.Bounds()
	rect := CropRect(bounds.Dx(), bounds.Dy(), ratio, pos).Add(bounds.Min)

	cropped, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("%s: image type %T does not support cropping", op, img)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, cropped.SubImage(rect), &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("%s: encode: %w", op, err)
	}
	return out.Bytes(), nil
}

// Compress re-encodes the image as JPEG under the platform upload limit,
// stepping quality down until it fits. Images that cannot be decoded are
// passed through unchanged, the platform rejects them with a clearer error.
func Compress(data []byte) []byte {
	if len(data) <= maxUploadBytes {
		return data
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	for quality := startQuality; quality >= minQuality; quality -= 5 {
		var out bytes.Buffer
		if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
			return data
		}
		if out.Len() <= maxUploadBytes {
			return out.Bytes()
		}
	}

	return data
}

// Prepare runs the full pre-upload pipeline: crop to the slot's ratio, then
// compress under the upload limit.
func Prepare(data []byte, ratio models.CropRatio, pos models.CropPosition) ([]byte, error) {
	cropped, err := Crop(data, ratio, pos)
	if err != nil {
		return nil, err
	}
	return Compress(cropped), nil
}
