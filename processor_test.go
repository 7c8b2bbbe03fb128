package facefind

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T) *Processor {
	p := DefaultParams()
	p.MinNeighbors = 3
	return NewProcessor(newTestDetector(t, p))
}

func TestProcessor_ShouldProcessImage(t *testing.T) {
	proc := newTestProcessor(t)

	res, err := proc.Process(encode(t, brightSquare(), imaging.PNG))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Boxes)
	assert.Equal(t, len(res.Boxes), res.Count)

	res2, err := proc.ProcessReader(bytes.NewReader(encode(t, brightSquare(), imaging.PNG)))
	require.NoError(t, err)
	assert.Equal(t, res, res2)
	assert.Equal(t, res, proc.ProcessImage(brightSquare()))
}

func TestProcessor_ShouldReturnEmptyResult(t *testing.T) {
	proc := newTestProcessor(t)

	res, err := proc.Process(encode(t, uniform(50, 50, brightSquare().At(0, 0)), imaging.PNG))
	require.NoError(t, err)
	assert.NotNil(t, res.Boxes)
	assert.Empty(t, res.Boxes)
	assert.Equal(t, 0, res.Count)
}

func TestProcessor_ShouldRejectInvalidImage(t *testing.T) {
	proc := newTestProcessor(t)

	_, err := proc.Process([]byte("GIF89a but not really"))
	assert.True(t, errors.Is(err, ErrInvalidImage))

	_, _, err = proc.Annotate(nil, Outline)
	assert.True(t, errors.Is(err, ErrInvalidImage))
}

func TestProcessor_ShouldAnnotate(t *testing.T) {
	proc := newTestProcessor(t)

	img, res, err := proc.Annotate(encode(t, brightSquare(), imaging.PNG), Blur)
	require.NoError(t, err)
	assert.Equal(t, brightSquare().Bounds(), img.Bounds())
	assert.NotZero(t, res.Count)
}

func TestProcessor_ShouldBeSafeForConcurrentUse(t *testing.T) {
	proc := newTestProcessor(t)
	data := encode(t, brightSquare(), imaging.PNG)
	want, err := proc.Process(data)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = proc.Process(data)
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		assert.Equal(t, want, res)
	}
}

func newFacefinderProcessor(t *testing.T) *Processor {
	t.Helper()
	c, err := DefaultCascade()
	require.NoError(t, err)
	d, err := NewDetector(c, DefaultParams())
	require.NoError(t, err)
	return NewProcessor(d)
}

func TestProcessor_ShouldDetectSingleFace(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "sample.jpg"))
	require.NoError(t, err)

	res, err := newFacefinderProcessor(t).Process(data)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count, "boxes: %v", res.Boxes)

	// The portrait is 320x400 with the face filling its upper middle.
	face := image.Rect(60, 110, 250, 300)
	box := res.Boxes[0]
	assert.True(t, box.Rect().Overlaps(face), "box %v misses the face", box)
	assert.True(t, box.Rect().In(image.Rect(0, 0, 320, 400)))
	assert.Greater(t, box.W, 100)
}

func TestProcessor_ShouldFindNoFaceInBlankImage(t *testing.T) {
	data := encode(t, uniform(640, 480, color.White), imaging.JPEG)

	res, err := newFacefinderProcessor(t).Process(data)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, res.Boxes)
}

func TestProcessor_ShouldEnforcePixelLimit(t *testing.T) {
	proc := newTestProcessor(t)
	proc.MaxPixels = 32 * 32
	data := encode(t, brightSquare(), imaging.PNG)

	_, err := proc.Process(data)
	assert.True(t, errors.Is(err, ErrImageTooLarge), "got %v", err)
	_, _, err = proc.Annotate(data, Outline)
	assert.True(t, errors.Is(err, ErrImageTooLarge), "got %v", err)
}
