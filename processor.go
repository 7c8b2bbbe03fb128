package facefind

import (
	"image"
	"io"

	"github.com/pkg/errors"
)

// Processor chains the decoder and the detector. It is the single entry point
// used by the HTTP handlers and the command line tool.
// A Processor is safe for concurrent use once configured.
type Processor struct {
	Detector *Detector

	// MaxPixels rejects images declaring a larger area with ErrImageTooLarge.
	// Zero disables the check.
	MaxPixels int
}

// NewProcessor returns a processor backed by d.
func NewProcessor(d *Detector) *Processor {
	return &Processor{Detector: d, MaxPixels: DefaultMaxPixels}
}

// Process decodes data and detects the faces it contains.
func (p *Processor) Process(data []byte) (*Result, error) {
	raster, err := DecodeLimit(data, p.MaxPixels)
	if err != nil {
		return nil, err
	}
	return NewResult(p.Detector.Detect(raster)), nil
}

// ProcessImage detects faces in an already decoded image.
func (p *Processor) ProcessImage(img image.Image) *Result {
	return NewResult(p.Detector.Detect(NewRaster(img)))
}

// ProcessReader reads the whole stream and runs Process over it.
func (p *Processor) ProcessReader(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read the image")
	}
	return p.Process(data)
}

// Annotate decodes data, detects the faces and renders them on the image
// with the requested style.
func (p *Processor) Annotate(data []byte, style Style) (*image.NRGBA, *Result, error) {
	img, err := DecodeImageLimit(data, p.MaxPixels)
	if err != nil {
		return nil, nil, err
	}
	res := p.ProcessImage(img)

	return Annotate(img, res.Boxes, style), res, nil
}
