package netplay

import (
	"fmt"
	"io"
	"time"
)

const (
	helloMagic   = "FQ"
	helloVersion = 1
	helloSize    = len(helloMagic) + 2
)

// hello opens every peer connection so the acceptor learns the dialer's seat.
type hello struct {
	Seat uint8
}

func (h hello) MarshalBinary() ([]byte, error) {
	return []byte{helloMagic[0], helloMagic[1], helloVersion, h.Seat}, nil
}

func (h *hello) UnmarshalBinary(data []byte) error {
	if len(data) < helloSize {
		return fmt.Errorf("length %d: %w", len(data), ErrBadHello)
	}
	if string(data[:2]) != helloMagic {
		return fmt.Errorf("magic %q: %w", data[:2], ErrBadHello)
	}
	if data[2] != helloVersion {
		return fmt.Errorf("version %d: %w", data[2], ErrBadHello)
	}
	h.Seat = data[3]
	return nil
}

type deadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

func readHello(r deadlineReader, timeout time.Duration) (hello, error) {
	_ = r.SetReadDeadline(time.Now().Add(timeout))
	defer r.SetReadDeadline(time.Time{})

	buf := make([]byte, helloSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return hello{}, fmt.Errorf("reading hello: %w", err)
	}
	var h hello
	if err := h.UnmarshalBinary(buf); err != nil {
		return hello{}, err
	}
	return h, nil
}
