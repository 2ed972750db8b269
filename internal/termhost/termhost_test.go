package termhost

import (
	"context"
	"frogquest/internal/geom"
	"frogquest/internal/input"
	"frogquest/internal/render"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	t.Cleanup(screen.Fini)
	screen.SetSize(80, 24)
	return screen
}

func TestCellColors(t *testing.T) {
	fb := render.NewFramebuffer()
	fb.Fill(render.DefaultPallet.Background())
	fb.ColorPixel(geom.Pt(0, 0), render.DefaultPallet.Highlight())
	fb.ColorPixel(geom.Pt(314, 142), render.DefaultPallet.Selected())

	size := render.RenderRect.Size
	cols, rows := int(size.Width), int(size.Height+1)/2

	top, _ := cellColors(fb.Pix, cols, rows, 0, 0)
	assert.Equal(t, render.DefaultPallet.Highlight(), top)
	top, _ = cellColors(fb.Pix, cols, rows, 1, 0)
	assert.Equal(t, render.DefaultPallet.Background(), top)

	_, bottom := cellColors(fb.Pix, cols, rows, cols-1, rows-1)
	assert.Equal(t, render.DefaultPallet.Selected(), bottom)

	assert.NotPanics(t, func() {
		for cy := range 24 {
			for cx := range 80 {
				cellColors(fb.Pix, 80, 24, cx, cy)
			}
		}
	})
}

func TestKeyCode(t *testing.T) {
	tests := map[string]tcell.Key{
		"ArrowUp":    tcell.KeyUp,
		"ArrowDown":  tcell.KeyDown,
		"ArrowLeft":  tcell.KeyLeft,
		"ArrowRight": tcell.KeyRight,
		"Enter":      tcell.KeyEnter,
		"":           tcell.KeyTab,
	}
	for want, key := range tests {
		assert.Equal(t, want, keyCode(key, 0))
	}
	assert.Equal(t, "Enter", keyCode(tcell.KeyRune, ' '))
	assert.Empty(t, keyCode(tcell.KeyRune, 'x'))

	assert.True(t, isQuit(tcell.KeyEscape, 0))
	assert.True(t, isQuit(tcell.KeyRune, 'q'))
	assert.False(t, isQuit(tcell.KeyEnter, 0))
}

func TestSurface_Draw(t *testing.T) {
	screen := newScreen(t)
	s := NewSurface(screen)

	s.Draw()
	mainc, _, _, _ := screen.GetContent(0, 0)
	assert.NotEqual(t, upperHalfBlock, mainc, "nothing uploaded yet")

	fb := render.NewFramebuffer()
	fb.Fill(render.DefaultPallet.Dim())
	fb.Present(s)
	fb.Render(s)

	mainc, _, _, _ = screen.GetContent(0, 0)
	assert.Equal(t, upperHalfBlock, mainc)
	mainc, _, _, _ = screen.GetContent(79, 23)
	assert.Equal(t, upperHalfBlock, mainc)
}

type countingApp struct {
	stream *input.Stream
	ticks  atomic.Int32
	draws  atomic.Int32
	seen   atomic.Uint32
}

func (a *countingApp) Tick() {
	a.ticks.Add(1)
	a.seen.Or(uint32(a.stream.Drain().Byte()))
}

func (a *countingApp) Draw(surface render.Surface) {
	a.draws.Add(1)
}

func TestRun(t *testing.T) {
	screen := newScreen(t)
	stream := input.NewStream()
	app := &countingApp{stream: stream}

	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(context.Background(), screen, app, stream)
	}()

	screen.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)
	screen.InjectKey(tcell.KeyLeft, 0, tcell.ModNone)
	assert.Eventually(t, func() bool {
		return input.SetFromByte(byte(app.seen.Load())) == input.SetOf(input.Primary, input.Left)
	}, 2*time.Second, 10*time.Millisecond)

	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after quit")
	}
	assert.Positive(t, app.ticks.Load())
	assert.Equal(t, app.ticks.Load(), app.draws.Load())
}

func TestRun_contextDone(t *testing.T) {
	screen := newScreen(t)
	stream := input.NewStream()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(ctx, screen, &countingApp{stream: stream}, stream)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
