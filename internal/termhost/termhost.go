// Package termhost runs the game in a terminal. Every cell shows two
// framebuffer pixels stacked with an upper half block.
package termhost

import (
	"context"
	"frogquest/internal/input"
	"frogquest/internal/render"
	"time"

	"github.com/gdamore/tcell/v2"
)

const (
	TickInterval = time.Second / 60

	upperHalfBlock = '▀'
	eventQueueSize = 100
)

// App is driven once per tick.
type App interface {
	Tick()
	Draw(surface render.Surface)
}

// Surface paints uploaded frames onto a tcell screen, scaled down to fit.
type Surface struct {
	screen tcell.Screen
	pix    []byte
}

func NewSurface(screen tcell.Screen) *Surface {
	return &Surface{screen: screen}
}

func (s *Surface) Upload(pix []byte) {
	s.pix = append(s.pix[:0], pix...)
}

func (s *Surface) Draw() {
	if len(s.pix) == 0 {
		return
	}
	cols, rows := s.screen.Size()
	size := render.RenderRect.Size
	cols = min(cols, int(size.Width))
	rows = min(rows, int(size.Height+1)/2)

	for cy := range rows {
		for cx := range cols {
			top, bottom := cellColors(s.pix, cols, rows, cx, cy)
			style := tcell.StyleDefault.Foreground(toTcell(top)).Background(toTcell(bottom))
			s.screen.SetContent(cx, cy, upperHalfBlock, nil, style)
		}
	}
	s.screen.Show()
}

func toTcell(c render.Color) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// cellColors samples the two pixels shown by cell (cx, cy) of a cols x rows
// grid stretched over the render rect.
func cellColors(pix []byte, cols, rows, cx, cy int) (top, bottom render.Color) {
	size := render.RenderRect.Size
	x := int32(cx * int(size.Width) / cols)
	sample := func(py int) render.Color {
		y := int32(py * int(size.Height) / (rows * 2))
		i := (y*size.Width + x) * 4
		return render.Color{R: pix[i], G: pix[i+1], B: pix[i+2]}
	}
	return sample(cy * 2), sample(cy*2 + 1)
}

// keyCode names a terminal key the way a browser KeyboardEvent.code would.
func keyCode(key tcell.Key, r rune) string {
	switch key {
	case tcell.KeyUp:
		return "ArrowUp"
	case tcell.KeyDown:
		return "ArrowDown"
	case tcell.KeyLeft:
		return "ArrowLeft"
	case tcell.KeyRight:
		return "ArrowRight"
	case tcell.KeyEnter:
		return "Enter"
	case tcell.KeyRune:
		if r == ' ' {
			return "Enter"
		}
	}
	return ""
}

func isQuit(key tcell.Key, r rune) bool {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return r == 'q'
	}
	return false
}

// Run ticks and draws app every TickInterval until ctx is done or the player
// quits. Key events go into stream. The screen must already be initialized.
func Run(ctx context.Context, screen tcell.Screen, app App, stream *input.Stream) {
	events := make(chan tcell.Event, eventQueueSize)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	surface := NewSurface(screen)
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if isQuit(ev.Key(), ev.Rune()) {
					return
				}
				if in, ok := input.FromKeyCode(keyCode(ev.Key(), ev.Rune())); ok {
					stream.Put(in)
				}
			case *tcell.EventResize:
				screen.Clear()
				screen.Sync()
			}
		case <-ticker.C:
			app.Tick()
			app.Draw(surface)
		}
	}
}
