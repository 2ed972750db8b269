package host

import (
	"frogquest/internal/input"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

var keys = []ebiten.Key{
	ebiten.KeyArrowUp,
	ebiten.KeyArrowDown,
	ebiten.KeyArrowLeft,
	ebiten.KeyArrowRight,
	ebiten.KeyEnter,
}

var buttons = map[ebiten.StandardGamepadButton]input.Button{
	ebiten.StandardGamepadButtonLeftTop:    input.ButtonDPadUp,
	ebiten.StandardGamepadButtonLeftBottom: input.ButtonDPadDown,
	ebiten.StandardGamepadButtonLeftLeft:   input.ButtonDPadLeft,
	ebiten.StandardGamepadButtonLeftRight:  input.ButtonDPadRight,
	ebiten.StandardGamepadButtonRightRight: input.ButtonEast,
}

// Devices turns ebiten's polled keyboard and gamepad state into the event
// stream the game drains. Poll must run on the ebiten update goroutine.
type Devices struct {
	stream *input.Stream
	ids    []ebiten.GamepadID
	sticks map[ebiten.GamepadID]*input.Stick
}

func NewDevices(stream *input.Stream) *Devices {
	return &Devices{
		stream: stream,
		sticks: make(map[ebiten.GamepadID]*input.Stick),
	}
}

func (d *Devices) Poll() {
	for _, key := range keys {
		if !input.Repeats(inpututil.KeyPressDuration(key)) {
			continue
		}
		if in, ok := input.FromKeyCode(key.String()); ok {
			d.stream.Put(in)
		}
	}

	for _, id := range inpututil.AppendJustDisconnectedGamepadIDs(nil) {
		delete(d.sticks, id)
	}

	d.ids = ebiten.AppendGamepadIDs(d.ids[:0])
	for _, id := range d.ids {
		if !ebiten.IsStandardGamepadLayoutAvailable(id) {
			continue
		}
		d.pollGamepad(id)
	}
}

func (d *Devices) pollGamepad(id ebiten.GamepadID) {
	for b, button := range buttons {
		if !inpututil.IsStandardGamepadButtonJustPressed(id, b) {
			continue
		}
		if in, ok := input.FromButton(button); ok {
			d.stream.Put(in)
		}
	}

	stick, ok := d.sticks[id]
	if !ok {
		stick = &input.Stick{}
		d.sticks[id] = stick
	}
	x := ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickHorizontal)
	if in, ok := stick.Update(input.AxisLeftStickX, x); ok {
		d.stream.Put(in)
	}
	// ebiten reports down as positive.
	y := -ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickVertical)
	if in, ok := stick.Update(input.AxisLeftStickY, y); ok {
		d.stream.Put(in)
	}
}
