package icon

import (
	"image"

	"github.com/chewxy/math32"
)

// frameBuffer holds the render target as flat slices.
type frameBuffer struct {
	size  int
	color []uint8   // NRGBA interleaved, len = size*size*4
	depth []float32 // larger is closer, initialized to -inf
}

func newFrameBuffer(size int) *frameBuffer {
	n := size * size
	depth := make([]float32, n)
	for i := range depth {
		depth[i] = math32.Inf(-1)
	}
	return &frameBuffer{
		size:  size,
		color: make([]uint8, n*4),
		depth: depth,
	}
}

func (fb *frameBuffer) image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, fb.size, fb.size))
	copy(img.Pix, fb.color)
	return img
}
