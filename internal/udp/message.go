package udp

import (
	"bytes"
	"errors"
	"fmt"
)

// Message is a single datagram. Hi and bye messages are always routed to
// LabelControl.
type Message struct {
	kind  kind
	Label byte
	Body  []byte
}

type kind byte

const (
	kindData kind = iota
	kindHi
	kindBye
)

func (k kind) String() string {
	switch k {
	case kindData:
		return "data"
	case kindHi:
		return "hi"
	case kindBye:
		return "bye"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

const (
	wireVersion byte = 2
	headerSize       = /* version: */ 1 + /* kind: */ 1 + /* label: */ 1
)

// NewMessage returns a data message routed to label.
func NewMessage(label byte, body []byte) Message {
	return Message{kind: kindData, Label: label, Body: body}
}

func hiMessage(body []byte) Message {
	return Message{kind: kindHi, Label: LabelControl, Body: body}
}

func byeMessage() Message {
	return Message{kind: kindBye, Label: LabelControl}
}

func (msg Message) Hi() bool  { return msg.kind == kindHi }
func (msg Message) Bye() bool { return msg.kind == kindBye }

func (msg Message) Equal(other Message) bool {
	return msg.kind == other.kind && msg.Label == other.Label && bytes.Equal(msg.Body, other.Body)
}

func (msg Message) String() string {
	return fmt.Sprintf("%s@%d(%x)", msg.kind, msg.Label, msg.Body)
}

func (msg Message) MarshalBinary() ([]byte, error) {
	data := make([]byte, headerSize, headerSize+len(msg.Body))
	data[0] = wireVersion
	data[1] = byte(msg.kind)
	data[2] = msg.Label
	return append(data, msg.Body...), nil
}

var ErrMessageCorrupt = errors.New("message corrupt")

func (msg *Message) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("%d bytes: %w", len(data), ErrMessageCorrupt)
	}
	if data[0] != wireVersion {
		return fmt.Errorf("version %d: %w", data[0], ErrMessageCorrupt)
	}
	k := kind(data[1])
	if k > kindBye {
		return fmt.Errorf("%v: %w", k, ErrMessageCorrupt)
	}
	if k != kindData && data[2] != LabelControl {
		return fmt.Errorf("%v with label %d: %w", k, data[2], ErrMessageCorrupt)
	}

	msg.kind = k
	msg.Label = data[2]
	msg.Body = bytes.Clone(data[headerSize:])
	return nil
}
