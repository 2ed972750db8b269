// Package sprite decodes pallet-indexed tiles and blits them into a
// framebuffer.
package sprite

import (
	"fmt"
	"frogquest/internal/geom"
)

// PalletColor is an index into render.Pallet.
type PalletColor uint8

const (
	Color1 PalletColor = iota // background
	Color2                    // dim foreground
	Color3                    // highlight
	Color4                    // selected
)

const numPalletColors = 4

// InkIndex is the only pallet index that gets drawn; every other index is
// transparent.
const InkIndex = Color2

type SpriteData struct {
	Size   geom.Size
	Pixels []PalletColor // row-major
}

// Pixel returns the pallet index at p, which must lie in [0,Size).
func (d SpriteData) Pixel(p geom.Point) PalletColor {
	if p.X < 0 || p.Y < 0 || p.X >= d.Size.Width || p.Y >= d.Size.Height {
		panic(fmt.Sprintf("sprite: %v outside %v", p, d.Size))
	}
	return d.Pixels[p.Y*d.Size.Width+p.X]
}

// Crop returns the top-left sub-sprite of the given size.
func (d SpriteData) Crop(size geom.Size) SpriteData {
	out := SpriteData{Size: size, Pixels: make([]PalletColor, 0, size.Area())}
	for p := range size.Points() {
		out.Pixels = append(out.Pixels, d.Pixel(p))
	}
	return out
}

// Key names a tile in a sheet: either a single character or a short name.
type Key struct {
	Char rune
	Name string
}

func CharKey(c rune) Key      { return Key{Char: c} }
func NameKey(name string) Key { return Key{Name: name} }

func (k Key) IsChar() bool { return k.Name == "" }

func (k Key) String() string {
	if k.IsChar() {
		return fmt.Sprintf("Char(%q)", k.Char)
	}
	return fmt.Sprintf("Name(%q)", k.Name)
}

type Sheet struct {
	sprites map[Key]SpriteData
}

func NewSheet() *Sheet {
	return &Sheet{sprites: map[Key]SpriteData{}}
}

func (s *Sheet) Insert(key Key, data SpriteData) {
	if int(data.Size.Area()) != len(data.Pixels) {
		panic(fmt.Sprintf("sprite: %v has %d pixels for size %v", key, len(data.Pixels), data.Size))
	}
	s.sprites[key] = data
}

func (s *Sheet) Get(key Key) (SpriteData, bool) {
	data, ok := s.sprites[key]
	return data, ok
}

func (s *Sheet) Len() int { return len(s.sprites) }
