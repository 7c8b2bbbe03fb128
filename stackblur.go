// StackBlur, after Mario Klingemann's algorithm:
// http://incubator.quasimondo.com/processing/fast_blur_deluxe.php

package facefind

import "image"

// maxBlurRadius is the largest radius covered by the lookup tables.
const maxBlurRadius = len(mulTable) - 1

var mulTable = [...]uint32{
	512, 512, 456, 512, 328, 456, 335, 512, 405, 328, 271, 456, 388, 335, 292, 512,
	454, 405, 364, 328, 298, 271, 496, 456, 420, 388, 360, 335, 312, 292, 273, 512,
	482, 454, 428, 405, 383, 364, 345, 328, 312, 298, 284, 271, 259, 496, 475, 456,
	437, 420, 404, 388, 374, 360, 347, 335, 323, 312, 302, 292, 282, 273, 265, 512,
	497, 482, 468, 454, 441, 428, 417, 405, 394, 383, 373, 364, 354, 345, 337, 328,
	320, 312, 305, 298, 291, 284, 278, 271, 265, 259, 507, 496, 485, 475, 465, 456,
	446, 437, 428, 420, 412, 404, 396, 388, 381, 374, 367, 360, 354, 347, 341, 335,
	329, 323, 318, 312, 307, 302, 297, 292, 287, 282, 278, 273, 269, 265, 261, 512,
	505, 497, 489, 482, 475, 468, 461, 454, 447, 441, 435, 428, 422, 417, 411, 405,
	399, 394, 389, 383, 378, 373, 368, 364, 359, 354, 350, 345, 341, 337, 332, 328,
	324, 320, 316, 312, 309, 305, 301, 298, 294, 291, 287, 284, 281, 278, 274, 271,
	268, 265, 262, 259, 257, 507, 501, 496, 491, 485, 480, 475, 470, 465, 460, 456,
	451, 446, 442, 437, 433, 428, 424, 420, 416, 412, 408, 404, 400, 396, 392, 388,
	385, 381, 377, 374, 370, 367, 363, 360, 357, 354, 350, 347, 344, 341, 338, 335,
	332, 329, 326, 323, 320, 318, 315, 312, 310, 307, 304, 302, 299, 297, 294, 292,
	289, 287, 285, 282, 280, 278, 275, 273, 271, 269, 267, 265, 263, 261, 259,
}

var shgTable = [...]uint32{
	9, 11, 12, 13, 13, 14, 14, 15, 15, 15, 15, 16, 16, 16, 16, 17,
	17, 17, 17, 17, 17, 17, 18, 18, 18, 18, 18, 18, 18, 18, 18, 19,
	19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 20, 20, 20,
	20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 21,
	21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21,
	21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 22, 22, 22, 22, 22, 22,
	22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22,
	22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 23,
	23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23,
	23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23,
	23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23,
	23, 23, 23, 23, 23, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24,
	24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24,
	24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24,
	24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24,
	24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24,
}

// blurStack is one slot of the circular buffer holding the pixels currently
// inside the blur kernel.
type blurStack struct {
	px   [4]uint32
	next *blurStack
}

// Stackblur blurs img in place with the given radius and returns it.
// The image must have its min-point at (0, 0). Images narrower or shorter
// than two pixels are returned unchanged.
func Stackblur(img *image.NRGBA, width, height, radius uint32) *image.NRGBA {
	if radius < 1 || width < 2 || height < 2 {
		return img
	}
	if radius > uint32(maxBlurRadius) {
		radius = uint32(maxBlurRadius)
	}

	div := radius + radius + 1
	radiusPlus1 := radius + 1
	sumFactor := radiusPlus1 * (radiusPlus1 + 1) / 2
	mulSum := mulTable[radius]
	shgSum := shgTable[radius]

	stackStart := &blurStack{}
	stackEnd := stackStart
	stack := stackStart
	for i := uint32(1); i < div; i++ {
		stack.next = &blurStack{}
		stack = stack.next
		if i == radiusPlus1 {
			stackEnd = stack
		}
	}
	stack.next = stackStart

	// pass blurs count lines of length pixels each. offset maps a line and a
	// position on that line to the byte offset of the pixel.
	pass := func(count, length uint32, offset func(line, pos uint32) uint32) {
		last := length - 1

		for line := uint32(0); line < count; line++ {
			var sum, inSum, outSum [4]uint32

			p := offset(line, 0)
			stack := stackStart
			for i := uint32(0); i < radiusPlus1; i++ {
				for c := uint32(0); c < 4; c++ {
					stack.px[c] = uint32(img.Pix[p+c])
				}
				stack = stack.next
			}
			for c := uint32(0); c < 4; c++ {
				outSum[c] = radiusPlus1 * stackStart.px[c]
				sum[c] = sumFactor * stackStart.px[c]
			}

			for i := uint32(1); i < radiusPlus1; i++ {
				p = offset(line, min(i, last))
				for c := uint32(0); c < 4; c++ {
					v := uint32(img.Pix[p+c])
					stack.px[c] = v
					sum[c] += v * (radiusPlus1 - i)
					inSum[c] += v
				}
				stack = stack.next
			}

			stackIn, stackOut := stackStart, stackEnd
			for pos := uint32(0); pos < length; pos++ {
				p = offset(line, pos)
				alpha := (sum[3] * mulSum) >> shgSum
				img.Pix[p+3] = uint8(alpha)
				for c := uint32(0); c < 3; c++ {
					if alpha == 0 {
						img.Pix[p+c] = 0
					} else {
						img.Pix[p+c] = uint8((sum[c] * mulSum) >> shgSum)
					}
				}

				next := offset(line, min(pos+radiusPlus1, last))
				for c := uint32(0); c < 4; c++ {
					sum[c] -= outSum[c]
					outSum[c] -= stackIn.px[c]

					stackIn.px[c] = uint32(img.Pix[next+c])
					inSum[c] += stackIn.px[c]
					sum[c] += inSum[c]

					outSum[c] += stackOut.px[c]
					inSum[c] -= stackOut.px[c]
				}
				stackIn = stackIn.next
				stackOut = stackOut.next
			}
		}
	}

	stride := uint32(img.Stride)
	pass(height, width, func(line, pos uint32) uint32 { return line*stride + pos*4 })
	pass(width, height, func(line, pos uint32) uint32 { return pos*stride + line*4 })

	return img
}
