package render

import "image/color"

// Color is an opaque RGB color; alpha is always 255 on output.
type Color struct{ R, G, B uint8 }

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

var Black = Color{}

// Pallet is the fixed 4-color table every drawing function picks from.
type Pallet [4]Color

// DefaultPallet: background, dim, highlight, selected.
var DefaultPallet = Pallet{
	{R: 6, G: 35, B: 39},
	{R: 28, G: 124, B: 148},
	{R: 254, G: 160, B: 0},
	{R: 250, G: 232, B: 150},
}

func (p Pallet) Background() Color { return p[0] }
func (p Pallet) Dim() Color        { return p[1] }
func (p Pallet) Highlight() Color  { return p[2] }
func (p Pallet) Selected() Color   { return p[3] }
