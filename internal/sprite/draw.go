package sprite

import (
	"fmt"
	"frogquest/internal/geom"
	"frogquest/internal/render"
	"unicode"
)

// DrawTile paints the ink pixels of the tile stored under key at origin and
// returns the tile size so callers can advance. A missing key panics.
func DrawTile(fb *render.Framebuffer, sheet *Sheet, key Key, origin geom.Point, ink render.Color) geom.Size {
	data, ok := sheet.Get(key)
	if !ok {
		panic(fmt.Sprintf("sprite: %v not in sheet", key))
	}

	for tp := range data.Size.Points() {
		if data.Pixel(tp) == InkIndex {
			fb.ColorPixel(origin.Add(tp.ToVector()), ink)
		}
	}
	return data.Size
}

// DrawText lays out text left to right starting at origin. Every character
// must have an entry in the sheet.
func DrawText(fb *render.Framebuffer, sheet *Sheet, text string, origin geom.Point, ink render.Color) {
	p := origin
	for _, c := range text {
		if c < unicode.MaxASCII {
			c = unicode.ToLower(c)
		}
		size := DrawTile(fb, sheet, CharKey(c), p, ink)
		p.X += size.Width
	}
}

// TextWidth is the horizontal advance DrawText uses for text.
func TextWidth(sheet *Sheet, text string) int32 {
	var w int32
	for _, c := range text {
		if c < unicode.MaxASCII {
			c = unicode.ToLower(c)
		}
		data, ok := sheet.Get(CharKey(c))
		if !ok {
			panic(fmt.Sprintf("sprite: %v not in sheet", CharKey(c)))
		}
		w += data.Size.Width
	}
	return w
}
