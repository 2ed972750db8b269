package game

import (
	"frogquest/internal/geom"
	"frogquest/internal/input"
)

const (
	inkDim       = 1
	inkHighlight = 2
	inkSelected  = 3
)

type menuItem struct {
	box    *TextBox
	target AppState
}

type menu struct {
	items    []menuItem
	selected int
}

func (a *App) spawnMenu() *menu {
	a.spawn(TextBox{
		Text:   "frog quest battle",
		Origin: geom.Pt(10, 40),
		Ink:    inkHighlight,
	})

	m := &menu{}
	for i, item := range []struct {
		text   string
		target AppState
	}{
		{"single player", SinglePlayerGame},
		{"multiplayer", MultiplayerGame},
	} {
		box := a.spawn(TextBox{
			Text:   item.text,
			Origin: geom.Pt(15, 60+int32(i)*20),
			Ink:    inkDim,
		})
		m.items = append(m.items, menuItem{box: box, target: item.target})
	}
	m.highlight()
	return m
}

func (m *menu) highlight() {
	for i, item := range m.items {
		if i == m.selected {
			item.box.Ink = inkSelected
		} else {
			item.box.Ink = inkDim
		}
	}
}

// drive moves the selection and returns the target of the selected item
// once Primary is pressed.
func (m *menu) drive(in input.Set) (AppState, bool) {
	if in.Has(input.Up) && m.selected > 0 {
		m.selected--
	}
	if in.Has(input.Down) && m.selected < len(m.items)-1 {
		m.selected++
	}
	m.highlight()

	if in.Has(input.Primary) {
		return m.items[m.selected].target, true
	}
	return Menu, false
}
