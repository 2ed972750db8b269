package game

import (
	"context"
	"errors"
	"fmt"
	"frogquest/internal/geom"
	"frogquest/internal/input"
	"frogquest/internal/render"
	"frogquest/internal/rollback"
	"frogquest/internal/sprite"
	"frogquest/internal/state"
	"log/slog"
	"slices"
)

type AppState uint8

const (
	Menu AppState = iota
	SinglePlayerGame
	MultiplayerGame
)

func (s AppState) String() string {
	switch s {
	case Menu:
		return "menu"
	case SinglePlayerGame:
		return "single player"
	case MultiplayerGame:
		return "multiplayer"
	default:
		return fmt.Sprintf("AppState(%d)", uint8(s))
	}
}

// TextBox is a line of text owned by the app state that spawned it.
type TextBox struct {
	Owner  AppState
	Text   string
	Origin geom.Point
	// Ink indexes the pallet.
	Ink int
}

type Options struct {
	Font     *sprite.Sheet
	Pallet   render.Pallet
	Stream   *input.Stream
	Rollback rollback.Config
	Open     Opener
}

// App is the host-agnostic game: the host calls Tick once per display frame
// and Draw whenever it wants a picture.
type App struct {
	ctx  context.Context
	opts Options
	fb   *render.Framebuffer

	state AppState
	boxes []*TextBox

	menu   *menu
	world  *state.State
	online *multiplayer
}

func NewApp(ctx context.Context, opts Options) (*App, error) {
	if opts.Font == nil {
		return nil, errors.New("no font")
	}
	if opts.Stream == nil {
		return nil, errors.New("no input stream")
	}
	if err := opts.Rollback.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rollback config: %w", err)
	}

	a := &App{
		ctx:  ctx,
		opts: opts,
		fb:   render.NewFramebuffer(),
	}
	a.enter(Menu)
	return a, nil
}

func (a *App) State() AppState { return a.state }

// TextBoxes returns a copy of every live text box.
func (a *App) TextBoxes() []TextBox {
	boxes := make([]TextBox, len(a.boxes))
	for i, b := range a.boxes {
		boxes[i] = *b
	}
	return boxes
}

// World returns the simulated world while in a game state.
func (a *App) World() (state.State, bool) {
	switch {
	case a.world != nil:
		return a.world.Clone(), true
	case a.online != nil:
		return a.online.session.State(), true
	default:
		return state.State{}, false
	}
}

// Session is the rollback session while in MultiplayerGame, nil otherwise.
func (a *App) Session() *rollback.Session {
	if a.online == nil {
		return nil
	}
	return a.online.session
}

func (a *App) Framebuffer() *render.Framebuffer { return a.fb }

func (a *App) spawn(box TextBox) *TextBox {
	b := &box
	b.Owner = a.state
	a.boxes = append(a.boxes, b)
	return b
}

func (a *App) despawn(owner AppState) {
	a.boxes = slices.DeleteFunc(a.boxes, func(b *TextBox) bool {
		return b.Owner == owner
	})
}

func (a *App) Transition(next AppState) {
	slog.Debug("app state transition", "from", a.state, "to", next)
	a.exit()
	a.enter(next)
}

func (a *App) enter(s AppState) {
	a.state = s
	switch s {
	case Menu:
		a.menu = a.spawnMenu()
	case SinglePlayerGame:
		w := state.New(1)
		a.world = &w
	case MultiplayerGame:
		a.online = a.startMultiplayer()
	}
}

func (a *App) exit() {
	switch a.state {
	case Menu:
		a.menu = nil
	case SinglePlayerGame:
		a.world = nil
	case MultiplayerGame:
		if a.online != nil {
			a.online.leave(a.ctx)
			a.online = nil
		}
	}
	a.despawn(a.state)
}

func (a *App) Tick() {
	in := a.opts.Stream.Drain()

	switch a.state {
	case Menu:
		if next, ok := a.menu.drive(in); ok {
			a.Transition(next)
		}
	case SinglePlayerGame:
		w := state.Step(*a.world, []input.Set{in})
		a.world = &w
	case MultiplayerGame:
		if a.online != nil && a.online.tick(in) {
			a.Transition(Menu)
		}
	}
}

// Draw paints the current frame and hands it to the surface.
func (a *App) Draw(surface render.Surface) {
	if w, ok := a.World(); ok {
		state.Render(a.fb, w, a.opts.Pallet)
	} else {
		a.fb.Fill(a.opts.Pallet.Background())
	}
	for _, b := range a.boxes {
		sprite.DrawText(a.fb, a.opts.Font, b.Text, b.Origin, a.opts.Pallet[b.Ink])
	}

	a.fb.Present(surface)
	a.fb.Render(surface)
}

// Close releases the transport of a running multiplayer game.
func (a *App) Close(ctx context.Context) error {
	if a.online == nil {
		return nil
	}
	err := a.online.close(ctx)
	a.online = nil
	return err
}
