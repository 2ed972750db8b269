package host

import (
	_ "embed"
	"fmt"
	"frogquest/internal/render"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

//go:embed present.kage
var presentShaderSrc []byte

// EbitenSurface keeps the framebuffer as one texture and draws it scaled onto
// the screen image handed to it each display frame.
type EbitenSurface struct {
	scale   int
	texture *ebiten.Image
	shader  *ebiten.Shader
	target  *ebiten.Image
}

func NewEbitenSurface(scale int) (*EbitenSurface, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("pixel scale %d: must be positive", scale)
	}
	shader, err := ebiten.NewShader(presentShaderSrc)
	if err != nil {
		return nil, fmt.Errorf("compiling present shader: %w", err)
	}

	size := render.RenderRect.Size
	return &EbitenSurface{
		scale: scale,
		texture: ebiten.NewImageWithOptions(
			image.Rect(0, 0, int(size.Width), int(size.Height)),
			&ebiten.NewImageOptions{Unmanaged: true},
		),
		shader: shader,
		target: nil,
	}, nil
}

// ScreenSize is the device viewport: the render rect scaled by the pixel scale.
func (s *EbitenSurface) ScreenSize() (int, int) {
	size := render.RenderRect.Size.Mul(int32(s.scale))
	return int(size.Width), int(size.Height)
}

// SetTarget selects the screen the next Draw renders into.
func (s *EbitenSurface) SetTarget(screen *ebiten.Image) {
	s.target = screen
}

func (s *EbitenSurface) Upload(pix []byte) {
	s.texture.WritePixels(pix)
}

func (s *EbitenSurface) Draw() {
	if s.target == nil {
		return
	}

	opts := &ebiten.DrawRectShaderOptions{}
	opts.GeoM.Scale(float64(s.scale), float64(s.scale))
	opts.Blend = ebiten.BlendCopy
	opts.Images[0] = s.texture
	w, h := s.texture.Bounds().Dx(), s.texture.Bounds().Dy()
	s.target.DrawRectShader(w, h, s.shader, opts)
}
