package host

import (
	"context"
	"frogquest/internal/render"

	"github.com/hajimehoshi/ebiten/v2"
)

// App is a host-agnostic game driven one display frame at a time.
type App interface {
	Tick()
	Draw(surface render.Surface)
}

// Game runs an App inside an ebiten window.
type Game struct {
	ctx     context.Context
	app     App
	devices *Devices
	surface *EbitenSurface
}

var _ ebiten.Game = (*Game)(nil)

func NewGame(ctx context.Context, app App, devices *Devices, surface *EbitenSurface) *Game {
	return &Game{
		ctx:     ctx,
		app:     app,
		devices: devices,
		surface: surface,
	}
}

func (g *Game) Layout(int, int) (int, int) {
	return g.surface.ScreenSize()
}

func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}

	g.devices.Poll()
	g.app.Tick()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.surface.SetTarget(screen)
	g.app.Draw(g.surface)
}
