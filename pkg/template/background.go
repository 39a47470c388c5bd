package template

import (
	"bytes"
	"image"
	"image/draw"
	"os"

	"github.com/disintegration/imaging"

	"github.com/certifyhq/certgen/pkg/errors"
)

// DecodeBackground decodes a template image from raw bytes into an RGBA
// bitmap ready for drawing. Format is sniffed from the payload (JPEG, PNG,
// GIF, TIFF and BMP are accepted) and EXIF orientation is honored, so a
// photo exported sideways from a phone still renders upright.
func DecodeBackground(data []byte) (*image.RGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding template image")
	}
	return toRGBA(img), nil
}

// LoadBackground reads and decodes a template image file.
func LoadBackground(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeTemplateNotFound, err, "template %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading template %s", path)
	}
	return DecodeBackground(data)
}

// CloneBackground returns an independent pixel-for-pixel copy. Each render
// worker receives its own clone so no image memory is shared across
// goroutines.
func CloneBackground(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}
