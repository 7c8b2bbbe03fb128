package facefind

import (
	_ "embed"
	"encoding/binary"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
)

// DefaultBaseSize is the smallest detection window, in pixels, scanned with
// the facefinder cascade.
const DefaultBaseSize = 20

const (
	cascadeHeaderSize = 8
	maxTreeDepth      = 16
	maxTreeCount      = 1 << 16
)

// Facefinder is the pigo frontal face cascade bundled with the binaries.
//
//go:embed cascade/facefinder
var Facefinder []byte

// Cascade is an unpacked pigo cascade classifier. It is built once at startup
// and never mutated afterwards, so a single instance can be shared by any
// number of concurrent detections.
type Cascade struct {
	classifier *pigo.Pigo

	// BaseSize is the side of the smallest detection window.
	BaseSize int
	// Depth is the depth of every decision tree.
	Depth int
	// Trees is the number of stages (one tree per stage).
	Trees int
}

// DefaultCascade unpacks the bundled facefinder cascade.
func DefaultCascade() (*Cascade, error) {
	return LoadCascade(Facefinder, DefaultBaseSize)
}

// LoadCascadeFile reads and unpacks a cascade file from disk.
func LoadCascadeFile(path string, baseSize int) (*Cascade, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read the cascade file %v", path)
	}
	return LoadCascade(data, baseSize)
}

// LoadCascade validates the binary layout of a pigo cascade and unpacks it.
func LoadCascade(data []byte, baseSize int) (*Cascade, error) {
	if baseSize < 1 {
		return nil, errors.Wrapf(ErrInvalidParameters, "base window size must be positive, got %d", baseSize)
	}
	depth, trees, err := inspectCascade(data)
	if err != nil {
		return nil, err
	}

	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidCascade, "error unpacking the cascade file: %v", err)
	}

	return &Cascade{
		classifier: classifier,
		BaseSize:   baseSize,
		Depth:      depth,
		Trees:      trees,
	}, nil
}

// inspectCascade walks the cascade header and makes sure every tree fits in
// the buffer, since the unpacker indexes the data without bounds checks.
func inspectCascade(data []byte) (depth, trees int, err error) {
	if len(data) < cascadeHeaderSize+8 {
		return 0, 0, errors.Wrapf(ErrInvalidCascade, "cascade too short: %d bytes", len(data))
	}
	d := binary.LittleEndian.Uint32(data[cascadeHeaderSize:])
	n := binary.LittleEndian.Uint32(data[cascadeHeaderSize+4:])

	if d < 1 || d > maxTreeDepth {
		return 0, 0, errors.Wrapf(ErrInvalidCascade, "unsupported tree depth %d", d)
	}
	if n < 1 || n > maxTreeCount {
		return 0, 0, errors.Wrapf(ErrInvalidCascade, "unsupported tree count %d", n)
	}

	// Per tree: node codes, leaf predictions and the stage threshold.
	leaves := 1 << d
	treeSize := (4*leaves - 4) + 4*leaves + 4
	want := cascadeHeaderSize + 8 + int(n)*treeSize
	if len(data) < want {
		return 0, 0, errors.Wrapf(ErrInvalidCascade, "cascade truncated: want %d bytes, got %d", want, len(data))
	}

	return int(d), int(n), nil
}
