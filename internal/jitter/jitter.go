// Package jitter keeps the local inputs a peer has not acknowledged yet so
// they can be resent together over an unreliable link.
package jitter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"frogquest/internal/input"
	"iter"
	"slices"
)

var ErrShortData = errors.New("short data")

// entrySize matches the 5-byte input message: frame u32 LE, input byte.
const entrySize = 4 + input.Size

// MaxEntries bounds a buffer so its encoding fits one datagram.
const MaxEntries = 200

type entry struct {
	input.Set
	frame uint32
}

// Buffer holds inputs in increasing frame order. next is one past the
// highest frame ever stored.
type Buffer struct {
	entries []entry
	next    uint32
}

// All yields every pending input in frame order.
func (buf Buffer) All() iter.Seq2[uint32, input.Set] {
	return func(yield func(uint32, input.Set) bool) {
		for _, e := range buf.entries {
			if !yield(e.frame, e.Set) {
				return
			}
		}
	}
}

// Put stores in at frame. Frames must be increasing, even across
// DiscardUntil.
func (buf *Buffer) Put(frame uint32, in input.Set) error {
	if frame < buf.next {
		return fmt.Errorf("frame %d below next frame %d", frame, buf.next)
	}
	if len(buf.entries) >= MaxEntries {
		return fmt.Errorf("%d pending inputs: buffer full", len(buf.entries))
	}
	buf.entries = append(buf.entries, entry{Set: in, frame: frame})
	buf.next = frame + 1
	return nil
}

// DiscardUntil drops every input at or below frame.
func (buf *Buffer) DiscardUntil(frame uint32) {
	idx := 0
	for idx < len(buf.entries) && buf.entries[idx].frame <= frame {
		idx++
	}
	buf.entries = slices.Delete(buf.entries, 0, idx)
}

func (buf Buffer) AppendBinary(b []byte) ([]byte, error) {
	b = binary.LittleEndian.AppendUint16(b, uint16(len(buf.entries)))
	for _, e := range buf.entries {
		b = binary.LittleEndian.AppendUint32(b, e.frame)
		b = append(b, e.Byte())
	}
	return b, nil
}

func (buf Buffer) MarshalBinary() ([]byte, error) {
	return buf.AppendBinary(make([]byte, 0, 2+len(buf.entries)*entrySize))
}

func (buf *Buffer) UnmarshalBinary(data []byte) error {
	if l := len(data); l < 2 {
		return fmt.Errorf("data length %d less than 2: %w", l, ErrShortData)
	}
	n := int(binary.LittleEndian.Uint16(data))
	data = data[2:]
	if l := len(data); l < n*entrySize {
		return fmt.Errorf("data length %d less than %d: %w", l, n*entrySize, ErrShortData)
	}

	entries := make([]entry, n)
	for i := range entries {
		entries[i] = entry{
			frame: binary.LittleEndian.Uint32(data),
			Set:   input.SetFromByte(data[4]),
		}
		data = data[entrySize:]
	}

	buf.entries = entries
	buf.next = 0
	if n > 0 {
		buf.next = entries[n-1].frame + 1
	}
	return nil
}
