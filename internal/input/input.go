// Package input turns device events into the one-byte per-frame input set
// that is shared with peers.
package input

import (
	"errors"
	"fmt"
	"strings"
)

var ErrShortData = errors.New("short data")

// Input is a semantic action; its value is the bit index in Set.
type Input uint8

const (
	Up Input = iota
	Down
	Left
	Right
	Primary

	numInputs
)

func (i Input) String() string {
	switch i {
	case Up:
		return "Up"
	case Down:
		return "Down"
	case Left:
		return "Left"
	case Right:
		return "Right"
	case Primary:
		return "Primary"
	default:
		return fmt.Sprintf("Input(%d)", uint8(i))
	}
}

// Size is the number of bytes a Set occupies on the wire.
const Size = 1

// Set holds every input seen during one frame. A zero valued set does not
// manipulate the state.
type Set uint8

const validMask = Set(1<<numInputs - 1)

func SetOf(inputs ...Input) Set {
	var s Set
	for _, i := range inputs {
		s = s.With(i)
	}
	return s
}

func (s Set) With(i Input) Set { return s | 1<<i }

func (s Set) Has(i Input) bool { return s&(1<<i) != 0 }

func (s Set) Empty() bool { return s == 0 }

func (s Set) Byte() byte { return byte(s) }

// SetFromByte decodes the wire byte. Bits that name no input are dropped.
func SetFromByte(b byte) Set { return Set(b) & validMask }

func (s Set) String() string {
	if s.Empty() {
		return "{}"
	}
	var names []string
	for i := range numInputs {
		if s.Has(i) {
			names = append(names, i.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

func (s Set) MarshalBinary() ([]byte, error) {
	return []byte{s.Byte()}, nil
}

func (s *Set) UnmarshalBinary(data []byte) error {
	if l := len(data); l < Size {
		return fmt.Errorf("data length %d less than %d: %w", l, Size, ErrShortData)
	}
	*s = SetFromByte(data[0])
	return nil
}
