// Package cascadetest builds small pigo cascades with a known response, so
// that detection can be tested without the trained facefinder file.
package cascadetest

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Tree is a single stage of a cascade. Codes holds 4 signed offsets per
// internal node (row and column of two pixels, in 1/256 of the window side),
// Preds holds one prediction per leaf.
type Tree struct {
	Codes     []int8
	Preds     []float32
	Threshold float32
}

// Build serializes trees of the given depth into the pigo binary layout.
func Build(depth uint32, trees ...Tree) []byte {
	var buf bytes.Buffer

	// The 8 byte header is skipped by the unpacker.
	buf.Write(make([]byte, 8))
	binary.Write(&buf, binary.LittleEndian, depth)
	binary.Write(&buf, binary.LittleEndian, uint32(len(trees)))

	nodes := 4*(1<<depth) - 4
	leaves := 1 << depth
	for _, t := range trees {
		codes := make([]byte, nodes)
		for i := 0; i < len(t.Codes) && i < nodes; i++ {
			codes[i] = byte(t.Codes[i])
		}
		buf.Write(codes)

		for i := 0; i < leaves; i++ {
			var p float32
			if i < len(t.Preds) {
				p = t.Preds[i]
			}
			binary.Write(&buf, binary.LittleEndian, math.Float32bits(p))
		}
		binary.Write(&buf, binary.LittleEndian, math.Float32bits(t.Threshold))
	}
	return buf.Bytes()
}

// BrightCenter returns a one stage cascade accepting any window whose centre
// pixel is strictly brighter than the pixel about 0.4 of the window side up
// and to the left of it. A uniform image never produces a detection.
func BrightCenter() []byte {
	return Build(1, Tree{
		Codes:     []int8{0, 0, -100, -100},
		Preds:     []float32{1, -1},
		Threshold: 0,
	})
}

// RejectAll returns a cascade whose single stage rejects every window.
func RejectAll() []byte {
	return Build(1, Tree{
		Codes:     []int8{0, 0, 0, 0},
		Preds:     []float32{-1, -1},
		Threshold: 0,
	})
}
