// Package icon renders geometry thumbnails for asset headers.
package icon

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/chewxy/math32"

	"github.com/Faultbox/meshforge/pkg/geometry"
	mmath "github.com/Faultbox/meshforge/pkg/math"
)

// ErrNothingToRender is returned for a LOD without drawable vertices.
var ErrNothingToRender = errors.New("nothing to render")

// Renderer draws a LOD into a square image.
type Renderer interface {
	Render(lod *geometry.MeshLOD, size int) (*image.NRGBA, error)
}

// SoftwareRenderer is an orthographic, z-buffered, flat-shaded rasterizer.
type SoftwareRenderer struct {
	Yaw     float32 // radians around Y
	Pitch   float32 // radians around X
	Color   color.NRGBA
	Light   mmath.Vec3 // direction towards the light, view space
	Ambient float32
	Margin  float32 // fraction of the image left empty on each side
}

// NewSoftwareRenderer returns a renderer with a three-quarter view.
func NewSoftwareRenderer() *SoftwareRenderer {
	return &SoftwareRenderer{
		Yaw:     math32.Pi / 4,
		Pitch:   math32.Pi / 8,
		Color:   color.NRGBA{R: 170, G: 172, B: 180, A: 255},
		Light:   mmath.Vec3{X: 0.4, Y: 0.7, Z: 0.6}.Normalize(),
		Ambient: 0.35,
		Margin:  0.08,
	}
}

// Render rasterizes every triangle-list submesh of lod into a size x size image.
func (r *SoftwareRenderer) Render(lod *geometry.MeshLOD, size int) (*image.NRGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid icon size %d", size)
	}
	if lod == nil {
		return nil, ErrNothingToRender
	}

	view := mmath.RotateX(r.Pitch).Mul(mmath.RotateY(r.Yaw))

	// Transform once, framing from the view-space bounds.
	transformed := make([][]mmath.Vec3, len(lod.Meshes))
	bounds := mmath.EmptyBounds()
	for mi, m := range lod.Meshes {
		if m.Topology != geometry.TopologyTriangleList {
			continue
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		pts := make([]mmath.Vec3, m.VertexCount)
		for i := range pts {
			p := m.Position(i)
			v := view.TransformPoint(mmath.Vec3{X: p[0], Y: p[1], Z: p[2]})
			if !v.IsFinite() {
				return nil, fmt.Errorf("mesh %q vertex %d: non-finite position", m.Name, i)
			}
			pts[i] = v
			bounds = bounds.Extend(v)
		}
		transformed[mi] = pts
	}
	if bounds.IsEmpty() {
		return nil, ErrNothingToRender
	}

	extent := bounds.Size()
	span := math32.Max(extent.X, extent.Y)
	if span < 1e-6 {
		span = 1e-6
	}
	usable := float32(size) * (1 - 2*r.Margin)
	scale := usable / span
	center := bounds.Center()
	half := float32(size) / 2

	fb := newFrameBuffer(size)
	for mi, m := range lod.Meshes {
		pts := transformed[mi]
		if pts == nil {
			continue
		}
		screen := make([]mmath.Vec3, len(pts))
		for i, v := range pts {
			screen[i] = mmath.Vec3{
				X: (v.X-center.X)*scale + half,
				Y: half - (v.Y-center.Y)*scale,
				Z: v.Z - center.Z,
			}
		}
		for t := 0; t+2 < int(m.IndexCount); t += 3 {
			i0, i1, i2 := m.Index(t), m.Index(t+1), m.Index(t+2)
			if int(i0) >= len(pts) || int(i1) >= len(pts) || int(i2) >= len(pts) {
				continue
			}
			shade := r.shade(pts[i0], pts[i1], pts[i2])
			if shade < 0 {
				continue
			}
			r.rasterize(fb, screen[i0], screen[i1], screen[i2], shade)
		}
	}

	return fb.image(), nil
}

// shade returns the flat lighting factor for a face, or -1 for degenerate faces.
func (r *SoftwareRenderer) shade(a, b, c mmath.Vec3) float32 {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Length() < 1e-12 {
		return -1
	}
	// Double-sided
	ndl := math32.Abs(n.Normalize().Dot(r.Light))
	return r.Ambient + (1-r.Ambient)*ndl
}

func (r *SoftwareRenderer) rasterize(fb *frameBuffer, a, b, c mmath.Vec3, shade float32) {
	size := fb.size
	minX := int(math32.Floor(math32.Min(math32.Min(a.X, b.X), c.X)))
	maxX := int(math32.Ceil(math32.Max(math32.Max(a.X, b.X), c.X)))
	minY := int(math32.Floor(math32.Min(math32.Min(a.Y, b.Y), c.Y)))
	maxY := int(math32.Ceil(math32.Max(math32.Max(a.Y, b.Y), c.Y)))
	minX = max(minX, 0)
	minY = max(minY, 0)
	maxX = min(maxX, size-1)
	maxY = min(maxY, size-1)
	if minX > maxX || minY > maxY {
		return
	}

	det := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if math32.Abs(det) < 1e-8 {
		return
	}
	invDet := 1 / det

	cr := uint8(math32.Min(float32(r.Color.R)*shade, 255))
	cg := uint8(math32.Min(float32(r.Color.G)*shade, 255))
	cb := uint8(math32.Min(float32(r.Color.B)*shade, 255))

	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5 - c.Y
		row := y * size
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5 - c.X
			w0 := ((b.Y-c.Y)*px + (c.X-b.X)*py) * invDet
			w1 := ((c.Y-a.Y)*px + (a.X-c.X)*py) * invDet
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			z := w0*a.Z + w1*b.Z + w2*c.Z
			idx := row + x
			if z <= fb.depth[idx] {
				continue
			}
			fb.depth[idx] = z

			p := idx * 4
			fb.color[p] = cr
			fb.color[p+1] = cg
			fb.color[p+2] = cb
			fb.color[p+3] = r.Color.A
		}
	}
}
