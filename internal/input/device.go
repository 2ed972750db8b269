package input

// AxisDeadZone is the stick magnitude below which axis motion is ignored.
const AxisDeadZone = 0.25

// FromKeyCode maps a DOM KeyboardEvent.code. Every other key is ignored.
func FromKeyCode(code string) (Input, bool) {
	switch code {
	case "ArrowUp":
		return Up, true
	case "ArrowDown":
		return Down, true
	case "ArrowLeft":
		return Left, true
	case "ArrowRight":
		return Right, true
	case "Enter":
		return Primary, true
	default:
		return 0, false
	}
}

type Button uint8

const (
	ButtonUnknown Button = iota
	ButtonDPadUp
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight
	ButtonEast
)

func FromButton(b Button) (Input, bool) {
	switch b {
	case ButtonDPadUp:
		return Up, true
	case ButtonDPadDown:
		return Down, true
	case ButtonDPadLeft:
		return Left, true
	case ButtonDPadRight:
		return Right, true
	case ButtonEast:
		return Primary, true
	default:
		return 0, false
	}
}

type Axis uint8

const (
	AxisLeftStickX Axis = iota
	AxisLeftStickY
)

// FromAxis maps a left stick reading. Y is positive upwards.
func FromAxis(axis Axis, value float64) (Input, bool) {
	if value > -AxisDeadZone && value < AxisDeadZone {
		return 0, false
	}
	switch axis {
	case AxisLeftStickX:
		if value > 0 {
			return Right, true
		}
		return Left, true
	case AxisLeftStickY:
		if value > 0 {
			return Up, true
		}
		return Down, true
	default:
		return 0, false
	}
}

const (
	RepeatDelay    = 30
	RepeatInterval = 2
)

// Repeats reports whether a key held for the given number of ticks emits an
// input this tick: once on press, then auto-repeat like a browser keydown
// stream.
func Repeats(ticks int) bool {
	if ticks == 1 {
		return true
	}
	return ticks > RepeatDelay && (ticks-RepeatDelay)%RepeatInterval == 0
}

// Stick remembers which side of the dead zone each axis of one stick was on,
// so an input is emitted only when an axis crosses out of the dead zone.
type Stick struct {
	zones [2]int8
}

func zoneOf(value float64) int8 {
	switch {
	case value >= AxisDeadZone:
		return 1
	case value <= -AxisDeadZone:
		return -1
	default:
		return 0
	}
}

func (s *Stick) Update(axis Axis, value float64) (Input, bool) {
	if int(axis) >= len(s.zones) {
		return 0, false
	}
	zone := zoneOf(value)
	if zone == s.zones[axis] {
		return 0, false
	}
	s.zones[axis] = zone
	return FromAxis(axis, value)
}
