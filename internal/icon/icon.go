package icon

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/Faultbox/meshforge/pkg/geometry"
)

// Options control icon generation.
type Options struct {
	Size        int    // final edge length in pixels
	Supersample int    // render scale before downsampling
	Filter      string // "bilinear" or "catmullrom"
}

// DefaultOptions matches the editor's thumbnail size.
func DefaultOptions() Options {
	return Options{Size: 90, Supersample: 4, Filter: "bilinear"}
}

// Interpolator maps a filter name to an x/image/draw scaler.
func Interpolator(name string) (draw.Interpolator, error) {
	switch name {
	case "", "bilinear":
		return draw.ApproxBiLinear, nil
	case "catmullrom":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown icon filter %q", name)
	}
}

// Generate renders lod at Size*Supersample, downsamples it, and returns PNG bytes.
func Generate(r Renderer, lod *geometry.MeshLOD, opts Options) ([]byte, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("invalid icon size %d", opts.Size)
	}
	if opts.Supersample < 1 {
		opts.Supersample = 1
	}
	interp, err := Interpolator(opts.Filter)
	if err != nil {
		return nil, err
	}

	big, err := r.Render(lod, opts.Size*opts.Supersample)
	if err != nil {
		return nil, err
	}

	img := Downsample(big, opts.Size, interp)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding icon: %w", err)
	}
	return buf.Bytes(), nil
}

// Downsample scales img to a size x size image. Scaling runs on premultiplied
// RGBA so transparent edges do not bleed dark fringes.
func Downsample(img *image.NRGBA, size int, interp draw.Interpolator) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return img
	}

	premul := image.NewRGBA(b)
	draw.Draw(premul, b, img, b.Min, draw.Src)

	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	interp.Scale(scaled, scaled.Bounds(), premul, b, draw.Src, nil)

	out := image.NewNRGBA(scaled.Bounds())
	draw.Draw(out, out.Bounds(), scaled, image.Point{}, draw.Src)
	return out
}
