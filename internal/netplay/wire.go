package netplay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"frogquest/internal/input"
)

var ErrShortData = errors.New("short data")

// MessageSize is frame u32 LE followed by the input byte.
const MessageSize = 4 + input.Size

type Message struct {
	Frame uint32
	Input input.Set
}

func (m Message) String() string {
	return fmt.Sprintf("frame %d %v", m.Frame, m.Input)
}

func (m Message) AppendBinary(b []byte) ([]byte, error) {
	b = binary.LittleEndian.AppendUint32(b, m.Frame)
	return append(b, m.Input.Byte()), nil
}

func (m Message) MarshalBinary() ([]byte, error) {
	return m.AppendBinary(make([]byte, 0, MessageSize))
}

func (m *Message) UnmarshalBinary(data []byte) error {
	if l := len(data); l < MessageSize {
		return fmt.Errorf("data length %d less than %d: %w", l, MessageSize, ErrShortData)
	}
	m.Frame = binary.LittleEndian.Uint32(data)
	m.Input = input.SetFromByte(data[4])
	return nil
}
