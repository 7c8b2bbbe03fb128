package facefind

import (
	"bytes"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the area of the images accepted by the decoders.
// A compressed image declaring larger dimensions is rejected before any
// pixel buffer is allocated.
const DefaultMaxPixels = 40_000_000

// Decode parses an encoded image and converts it to a grayscale raster.
// Any failure, including an empty buffer, is reported as ErrInvalidImage.
func Decode(data []byte) (*Raster, error) {
	return DecodeLimit(data, DefaultMaxPixels)
}

// DecodeLimit is Decode with a custom pixel cap. A cap <= 0 disables the check.
// Images over the cap are reported as ErrImageTooLarge.
func DecodeLimit(data []byte, maxPixels int) (*Raster, error) {
	src, err := decode(data, maxPixels)
	if err != nil {
		return nil, err
	}
	return NewRaster(src), nil
}

// DecodeImage parses JPEG, PNG, GIF, BMP, TIFF or WebP data into an upright
// *image.NRGBA with its min-point at (0, 0). EXIF orientation is applied.
func DecodeImage(data []byte) (*image.NRGBA, error) {
	return DecodeImageLimit(data, DefaultMaxPixels)
}

// DecodeImageLimit is DecodeImage with a custom pixel cap.
func DecodeImageLimit(data []byte, maxPixels int) (*image.NRGBA, error) {
	src, err := decode(data, maxPixels)
	if err != nil {
		return nil, err
	}
	if dst, ok := src.(*image.NRGBA); ok && dst.Rect.Min == (image.Point{}) {
		return dst, nil
	}
	return imaging.Clone(src), nil
}

func decode(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidImage, "empty buffer")
	}
	if err := checkDimensions(data, maxPixels); err != nil {
		return nil, err
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidImage, "could not decode the image: %v", err)
	}
	if src.Bounds().Empty() {
		return nil, errors.Wrap(ErrInvalidImage, "zero area image")
	}
	return src, nil
}

// checkDimensions reads the image header only.
func checkDimensions(data []byte, maxPixels int) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(ErrInvalidImage, "could not read the image header: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.Wrap(ErrInvalidImage, "zero area image")
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return errors.Wrapf(ErrImageTooLarge, "%dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format imaging.Format) error {
	return imaging.Encode(w, img, format, imaging.JPEGQuality(95))
}
