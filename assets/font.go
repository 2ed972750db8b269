// Package assets provides the font sprite sheet.
package assets

import (
	"errors"
	"fmt"
	"frogquest/internal/geom"
	"frogquest/internal/sprite"
	"image"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FontCharset lists every character the font sheet has a glyph for.
const FontCharset = "abcdefghijklmnopqrstuvwxyz0123456789 .,;:?!-_~#'&()[]{}^|`/\\@*+=$%<>"

// GlyphSize is the packed tile size: 16x16 source tiles halved in width.
var GlyphSize = geom.Sz(8, 16)

var ErrMissingGlyph = errors.New("missing glyph")

// Font returns the font sheet stored at path, or the built-in one when path
// is empty.
func Font(path string) (*sprite.Sheet, error) {
	if path == "" {
		return BuildFont(basicfont.Face7x13)
	}
	return LoadFont(path)
}

// LoadFont reads a serialized sheet and checks it covers FontCharset.
func LoadFont(path string) (*sprite.Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sheet := sprite.NewSheet()
	err = sheet.UnmarshalBinary(data)
	if err != nil {
		return nil, fmt.Errorf("decoding font %q: %w", path, err)
	}

	for _, c := range FontCharset {
		if _, ok := sheet.Get(sprite.CharKey(c)); !ok {
			return nil, fmt.Errorf("font %q: char %q: %w", path, c, ErrMissingGlyph)
		}
	}
	return sheet, nil
}

// BuildFont rasterizes every FontCharset glyph of face into a GlyphSize tile
// with ink Color2.
func BuildFont(face font.Face) (*sprite.Sheet, error) {
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := metrics.Height.Ceil()
	top := (int(GlyphSize.Height) - height) / 2
	dot := fixed.P(0, top+ascent)

	sheet := sprite.NewSheet()
	for _, c := range FontCharset {
		data := sprite.SpriteData{
			Size:   GlyphSize,
			Pixels: make([]sprite.PalletColor, GlyphSize.Area()),
		}

		dr, mask, maskp, _, ok := face.Glyph(dot, c)
		if !ok {
			return nil, fmt.Errorf("char %q: %w", c, ErrMissingGlyph)
		}
		for y := dr.Min.Y; y < dr.Max.Y; y++ {
			for x := dr.Min.X; x < dr.Max.X; x++ {
				p := image.Pt(x, y)
				if !p.In(image.Rect(0, 0, int(GlyphSize.Width), int(GlyphSize.Height))) {
					continue
				}
				_, _, _, a := mask.At(maskp.X+x-dr.Min.X, maskp.Y+y-dr.Min.Y).RGBA()
				if a > 0 {
					data.Pixels[y*int(GlyphSize.Width)+x] = sprite.InkIndex
				}
			}
		}

		sheet.Insert(sprite.CharKey(c), data)
	}

	return sheet, nil
}
