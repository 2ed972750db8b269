// Package render holds the off-screen pixel buffer and the surface it is
// presented on.
package render

import (
	"fmt"
	"frogquest/internal/geom"
)

const (
	// BytesPerPixel is red, green, blue and alpha.
	BytesPerPixel = 4

	DefaultPixelScale = 4
)

// RenderRect is the logical pixel grid of the framebuffer.
var RenderRect = geom.R(0, 0, 315, 143)

// Surface is the GPU side of the framebuffer.
type Surface interface {
	// Upload replaces the texture with pix, RGBA8, RenderRect sized.
	Upload(pix []byte)
	// Draw issues one textured quad covering the viewport.
	Draw()
}

type Framebuffer struct {
	Pix []byte
}

func NewFramebuffer() *Framebuffer {
	pix := make([]byte, int(RenderRect.Size.Area())*BytesPerPixel)
	for i := range pix {
		pix[i] = 0xff
	}
	return &Framebuffer{Pix: pix}
}

func (fb *Framebuffer) offset(p geom.Point) int {
	return int(p.Y*RenderRect.Size.Width+p.X) * BytesPerPixel
}

// ColorPixel writes c at p. p must be inside RenderRect.
func (fb *Framebuffer) ColorPixel(p geom.Point, c Color) {
	if !RenderRect.Contains(p) {
		panic(fmt.Sprintf("render: %v not in %v", p, RenderRect))
	}

	i := fb.offset(p)
	fb.Pix[i] = c.R
	fb.Pix[i+1] = c.G
	fb.Pix[i+2] = c.B
	fb.Pix[i+3] = 0xff
}

// At returns the color stored at p.
func (fb *Framebuffer) At(p geom.Point) Color {
	if !RenderRect.Contains(p) {
		panic(fmt.Sprintf("render: %v not in %v", p, RenderRect))
	}
	i := fb.offset(p)
	return Color{R: fb.Pix[i], G: fb.Pix[i+1], B: fb.Pix[i+2]}
}

func (fb *Framebuffer) Fill(c Color) {
	for i := 0; i < len(fb.Pix); i += BytesPerPixel {
		fb.Pix[i] = c.R
		fb.Pix[i+1] = c.G
		fb.Pix[i+2] = c.B
		fb.Pix[i+3] = 0xff
	}
}

// FillRect paints the part of r that lies inside RenderRect.
func (fb *Framebuffer) FillRect(r geom.Rect, c Color) {
	for p := range r.Intersect(RenderRect).Points() {
		fb.ColorPixel(p, c)
	}
}

// Present uploads the whole buffer as a single texture.
func (fb *Framebuffer) Present(s Surface) {
	s.Upload(fb.Pix)
}

// Render draws the uploaded texture.
func (fb *Framebuffer) Render(s Surface) {
	s.Draw()
}
