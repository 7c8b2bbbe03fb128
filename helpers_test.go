package facefind

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/esimov/facefind/internal/cascadetest"
	"github.com/stretchr/testify/require"
)

// square is the bright area painted by brightSquare.
var square = image.Rect(16, 16, 48, 48)

func newTestDetector(t *testing.T, p Params) *Detector {
	t.Helper()
	c, err := LoadCascade(cascadetest.BrightCenter(), DefaultBaseSize)
	require.NoError(t, err)
	d, err := NewDetector(c, p)
	require.NoError(t, err)
	return d
}

// brightSquare returns a black 64x64 image with a white square in the middle.
func brightSquare() *image.NRGBA {
	img := imaging.New(64, 64, color.Black)
	draw.Draw(img, square, image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func uniform(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

func encode(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}
